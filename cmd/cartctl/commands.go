package main

import (
	"fmt"
	"strconv"

	"github.com/example/furniture-market/internal/cartstore"
	"github.com/spf13/cobra"
)

func newCartCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := syncedSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), sess.store)
			return nil
		},
	}
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add PRODUCT_ID [QUANTITY]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity := 1
			if len(args) == 2 {
				n, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				quantity = n
			}

			sess, err := syncedSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := sess.store.Add(cmd.Context(), cartstore.Item{ProductID: args[0], Quantity: quantity}); err != nil {
				return fmt.Errorf("add %s: %w", args[0], err)
			}
			// The optimistic line has no name or price yet.
			if err := sess.store.Fetch(cmd.Context()); err != nil {
				return fmt.Errorf("refresh cart: %w", err)
			}
			printCart(cmd.OutOrStdout(), sess.store)
			return nil
		},
	}
}

func newSetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set PRODUCT_ID QUANTITY",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}

			sess, err := syncedSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := sess.store.UpdateQuantity(cmd.Context(), args[0], quantity); err != nil {
				return fmt.Errorf("set %s: %w", args[0], err)
			}
			printCart(cmd.OutOrStdout(), sess.store)
			return nil
		},
	}
}

func newRemoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm PRODUCT_ID",
		Aliases: []string{"remove"},
		Short:   "Remove a product from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := syncedSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := sess.store.Remove(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove %s: %w", args[0], err)
			}
			printCart(cmd.OutOrStdout(), sess.store)
			return nil
		},
	}
}

func newEstimateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate CITY",
		Short: "Estimate shipping for the cart to a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := syncedSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			est, err := sess.store.EstimateShipping(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("estimate: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Subtotal: %d\n", est.Subtotal)
			fmt.Fprintf(out, "Shipping: %d\n", est.Shipping)
			fmt.Fprintf(out, "Total:    %d\n", est.Total)
			return nil
		},
	}
}

func newCheckoutCmd(flags *globalFlags) *cobra.Command {
	var city string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(flags)
			if err != nil {
				return err
			}
			o, err := sess.api.PlaceOrder(cmd.Context(), sess.creds, city)
			if err != nil {
				return fmt.Errorf("checkout: %w", err)
			}
			if err := sess.store.Fetch(cmd.Context()); err != nil {
				return fmt.Errorf("refresh cart: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order:    %s\n", o.ID)
			fmt.Fprintf(out, "Shipping: %d (%s)\n", o.Shipping, o.ShippingMethod)
			fmt.Fprintf(out, "Total:    %d\n", o.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "buyer city for distance-based shipping")
	return cmd
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid quantity %q: must be a positive integer", s)
	}
	return n, nil
}
