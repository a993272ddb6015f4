package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"listingdesk/address"
	"listingdesk/catalog"
	"listingdesk/checkout"
	"listingdesk/config"
	"listingdesk/httputil"
	"listingdesk/storage"
)

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List listing packages and enhancements with prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := catalog.Load(cfg.Catalog.PackagesPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tTITLE\tPRICE")
			for _, p := range c.Packages() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Title, catalog.FromDollars(p.Price))
			}
			fmt.Fprintln(w, "\nENHANCEMENT\tTITLE\tPRICE")
			for _, e := range catalog.Enhancements() {
				price := e.Price.String()
				if e.PerImage {
					price += " per image"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, e.Title, price)
			}
			return w.Flush()
		},
	}
}

func printSummary(sum catalog.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, item := range sum.Items {
		fmt.Fprintf(w, "%s x%d\t%s\t\n", item.Title, item.Quantity, item.Amount())
	}
	fmt.Fprintf(w, "Subtotal\t%s\t\n", sum.Subtotal)
	if sum.Discount > 0 {
		fmt.Fprintf(w, "Promo %s\t-%s\t\n", sum.PromoCode, sum.Discount)
	}
	fmt.Fprintf(w, "Total\t%s\t\n", sum.Total)
	w.Flush()
}

func quoteCmd() *cobra.Command {
	var pkg, promo string
	cmd := &cobra.Command{
		Use:   "quote <property-id>",
		Short: "Price a package plus the property's selected enhancements",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if err := a.store.Enhancements.Fetch(ctx, args[0]); err != nil {
				return err
			}
			sum, err := a.store.Quote(args[0], pkg, promo)
			if err != nil {
				return err
			}
			printSummary(sum)
			return nil
		}),
	}
	cmd.Flags().StringVar(&pkg, "package", "", "Listing package id")
	cmd.Flags().StringVar(&promo, "promo", "", "Promo code")
	return cmd
}

func checkoutCmd() *cobra.Command {
	var pkg, promo string
	var wait bool
	cmd := &cobra.Command{
		Use:   "checkout <property-id>",
		Short: "Start hosted checkout for a property",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			id := args[0]
			if err := a.store.LoadProperty(ctx, id); err != nil {
				return err
			}
			if pkg != "" {
				if err := a.store.Details.Update(ctx, id, storage.Record{"property_package": pkg}).Wait(); err != nil {
					return err
				}
			}

			sum, err := a.store.Quote(id, pkg, promo)
			if err != nil {
				return err
			}
			printSummary(sum)

			svc := checkout.NewService(a.catalog, checkout.NewStripeGateway(a.cfg.Stripe.SecretKey), a.cfg.Stripe)
			session, err := svc.CreateSession(ctx, id, sess.User.Email, sum)
			if err != nil {
				return fmt.Errorf("checkout: %w", err)
			}
			fmt.Printf("\nComplete payment at:\n  %s\n", session.URL)
			if !wait {
				return nil
			}

			fmt.Println("Waiting for payment confirmation...")
			status, err := checkout.NewPoller(a.gateway).Wait(ctx, id)
			if errors.Is(err, checkout.ErrStillPending) {
				fmt.Printf("Payment is still %s. Check again later with `listingdesk properties show %s`.\n", status, id)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Payment %s\n", status)
			return nil
		}),
	}
	cmd.Flags().StringVar(&pkg, "package", "", "Listing package id")
	cmd.Flags().StringVar(&promo, "promo", "", "Promo code")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the payment is confirmed")
	return cmd
}

func addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address [query]",
		Short: "Suggest addresses; without a query, reads keystroke lines from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var provider address.Provider = address.NewNominatimProvider(
				cfg.Address.LookupURL, cfg.Address.CountryCode, httputil.NewClients().Lookup)
			if cfg.Redis.Addr != "" {
				cache := address.NewRedisCache(&cfg.Redis)
				defer cache.Close()
				provider = address.NewCachedProvider(provider, cache, cfg.Address.CountryCode, cfg.Redis.TTL)
			}

			if len(args) > 0 {
				out, err := provider.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				printSuggestions(out)
				return nil
			}

			lookup := address.NewLookup(provider, cfg.Address.Debounce)
			defer lookup.Stop()
			deliver := func(out []address.Suggestion, err error) {
				if err != nil {
					fmt.Fprintln(os.Stderr, "lookup:", err)
					return
				}
				printSuggestions(out)
			}
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lookup.Suggest(ctx, scanner.Text(), deliver)
			}
			return scanner.Err()
		},
	}
}

func printSuggestions(out []address.Suggestion) {
	if len(out) == 0 {
		fmt.Println("No matches")
		return
	}
	for _, s := range out {
		fmt.Printf("  %s (%.5f, %.5f)\n", s.Label, s.Lat, s.Lon)
	}
}
