package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/example/furniture-market/internal/cartstore"
	"github.com/example/furniture-market/internal/client"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	apiURL    string
	token     string
	statePath string
}

// session bundles what every subcommand needs: the API client, the
// caller's credentials and the local cart mirror.
type session struct {
	api   *client.Client
	creds client.Credentials
	store *cartstore.Store
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and edit a furniture marketplace cart",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api", envOr("CARTCTL_API", "http://localhost:8080"), "API base URL")
	pf.StringVar(&flags.token, "token", os.Getenv("CARTCTL_TOKEN"), "bearer token (defaults to $CARTCTL_TOKEN)")
	pf.StringVar(&flags.statePath, "state", defaultStatePath(), "local cart snapshot file")

	root.AddCommand(
		newCartCmd(flags),
		newAddCmd(flags),
		newSetCmd(flags),
		newRemoveCmd(flags),
		newEstimateCmd(flags),
		newCheckoutCmd(flags),
	)
	return root
}

func openSession(flags *globalFlags) (*session, error) {
	if flags.token == "" {
		return nil, errors.New("no token: pass --token or set CARTCTL_TOKEN")
	}
	api := client.New(flags.apiURL, nil)
	creds := client.Credentials{Token: flags.token}

	var opts []cartstore.Option
	if flags.statePath != "" {
		opts = append(opts, cartstore.WithSnapshotFile(flags.statePath))
	}
	store, err := cartstore.New(api, creds, opts...)
	if err != nil {
		return nil, fmt.Errorf("open cart state: %w", err)
	}
	return &session{api: api, creds: creds, store: store}, nil
}

// syncedSession opens a session and pulls the server cart into the mirror.
func syncedSession(ctx context.Context, flags *globalFlags) (*session, error) {
	sess, err := openSession(flags)
	if err != nil {
		return nil, err
	}
	if err := sess.store.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	return sess, nil
}

func printCart(out io.Writer, store *cartstore.Store) {
	items := store.Items()
	if len(items) == 0 {
		fmt.Fprintln(out, "Cart is empty")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE\tLINE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", item.ProductID, item.Name, item.Quantity, item.Price, item.Price*item.Quantity)
	}
	tw.Flush()
	fmt.Fprintf(out, "Subtotal: %d\n", store.Subtotal())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStatePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cartctl", "cart.json")
}
