package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"listingdesk/media"
	"listingdesk/models"
	"listingdesk/storage"
	"listingdesk/store"
)

func propertiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "List your properties",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			if err := a.store.Properties.FetchForOwner(ctx, sess.User.ID); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tSALE TYPE\tSTATUS\tCREATED")
			for _, p := range a.store.Properties.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Address, p.SaleType, p.Status, p.CreatedAt.Local().Format("2006-01-02"))
			}
			return w.Flush()
		}),
	}
	cmd.AddCommand(propertyAddCmd(), propertyShowCmd(), propertyUpdateCmd(), propertyRemoveCmd())
	return cmd
}

func propertyAddCmd() *cobra.Command {
	var p models.Property
	var title, publish, publishDate string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a property and its listing details",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			p.UserID = sess.User.ID
			op := a.store.Properties.Create(ctx, p)
			if err := op.Wait(); err != nil {
				return err
			}
			id := op.ID()

			detail := models.PropertyDetail{
				PropertyID:       id,
				ListingTitle:     title,
				PropertyCategory: p.PropertyCategory,
				PublishOption:    publish,
			}
			if publishDate != "" {
				rec := storage.Record{"publish_date": publishDate}
				if err := storage.Decode(rec, &detail); err != nil {
					return fmt.Errorf("publish date: %w", err)
				}
			}
			if err := a.store.Details.Create(ctx, detail).Wait(); err != nil {
				return err
			}
			fmt.Printf("Created property %s\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&p.Address, "address", "", "Street address")
	cmd.Flags().StringVar(&p.SaleType, "sale-type", models.SaleTypePrivate, "private_sale, auction or rent")
	cmd.Flags().StringVar(&p.PropertyCategory, "category", "residential", "residential, commercial, land or rural")
	cmd.Flags().StringVar(&p.PropertyType, "type", "house", "house, apartment, townhouse, ...")
	cmd.Flags().StringVar(&title, "title", "", "Listing title")
	cmd.Flags().StringVar(&publish, "publish", models.PublishImmediate, "immediate or scheduled")
	cmd.Flags().StringVar(&publishDate, "publish-date", "", "RFC 3339 publish time when scheduled")
	cmd.MarkFlagRequired("address")
	return cmd
}

func propertyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <property-id>",
		Short: "Show a property with its details, features, enhancements and inspections",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			id := args[0]
			if err := a.store.LoadProperty(ctx, id); err != nil {
				return err
			}
			d, ok := a.store.Details.Get(id)
			if !ok {
				return fmt.Errorf("property %s: %w", id, store.ErrNotFound)
			}

			fmt.Printf("Title:      %s\n", d.ListingTitle)
			fmt.Printf("Publish:    %s\n", d.PublishOption)
			fmt.Printf("Payment:    %s\n", valueOr(d.PaymentStatus, models.PaymentStatusUnpaid))
			fmt.Printf("Main image: %s\n", valueOr(d.Main(), "-"))
			for i, img := range d.Images {
				fmt.Printf("  image %d: %s\n", i+1, img.URL)
			}
			for _, fp := range d.FloorPlans {
				fmt.Printf("  floor plan: %s\n", fp.URL)
			}

			var names []string
			for _, f := range a.store.Features.Local(id) {
				names = append(names, f.FeatureName)
			}
			fmt.Printf("Features:   %s\n", valueOr(strings.Join(names, ", "), "-"))

			for _, e := range a.store.Enhancements.ForProperty(id) {
				fmt.Printf("Enhancement %s: %s ($%.2f, %s)\n", e.ID, e.EnhancementType, e.Price, e.Status)
			}
			for _, in := range a.store.Inspections.ForProperty(id) {
				fmt.Printf("Inspection %s: %s %s-%s %s\n", in.ID, in.InspectionDate, in.StartTime, in.EndTime, in.InspectionType)
			}
			return nil
		}),
	}
}

func propertyUpdateCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update <property-id>",
		Short: "Update listing details, e.g. --set listing_title=Sunny --set show_price=true",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			id := args[0]
			if _, err := a.store.Details.Fetch(ctx, id); err != nil {
				return err
			}
			patch, err := parseSets(sets)
			if err != nil {
				return err
			}
			if err := a.store.Details.Update(ctx, id, patch).Wait(); err != nil {
				return err
			}
			fmt.Println("Updated")
			return nil
		}),
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value (repeatable)")
	return cmd
}

func propertyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <property-id>",
		Short: "Delete a property and its media",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			sess, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			if err := a.store.Properties.FetchForOwner(ctx, sess.User.ID); err != nil {
				return err
			}
			if err := a.store.Properties.Remove(ctx, args[0]).Wait(); err != nil {
				return err
			}
			fmt.Printf("Deleted property %s\n", args[0])
			return nil
		}),
	}
}

func imagesCmd() *cobra.Command {
	var floorPlans bool
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage listing photos and floor plans",
	}

	add := &cobra.Command{
		Use:   "add <property-id> <file>...",
		Short: "Upload files and append them to the listing",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			id := args[0]
			if _, err := a.store.Details.Fetch(ctx, id); err != nil {
				return err
			}
			files := make([]media.File, 0, len(args)-1)
			for _, p := range args[1:] {
				f, err := media.ReadFile(p)
				if err != nil {
					return err
				}
				files = append(files, f)
			}
			var op *store.Op
			if floorPlans {
				op = a.store.Details.AddFloorPlans(ctx, id, files)
			} else {
				op = a.store.Details.AddImages(ctx, id, files)
			}
			if err := op.Wait(); err != nil {
				return err
			}
			fmt.Printf("Uploaded %d files\n", len(files))
			return nil
		}),
	}
	add.Flags().BoolVar(&floorPlans, "floor-plans", false, "Upload as floor plans")

	rm := &cobra.Command{
		Use:   "rm <property-id> <url>",
		Short: "Remove a photo or floor plan",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if _, err := a.store.Details.Fetch(ctx, args[0]); err != nil {
				return err
			}
			if floorPlans {
				return a.store.Details.RemoveFloorPlan(ctx, args[0], args[1]).Wait()
			}
			return a.store.Details.RemoveImage(ctx, args[0], args[1]).Wait()
		}),
	}
	rm.Flags().BoolVar(&floorPlans, "floor-plans", false, "Remove a floor plan")

	reorder := &cobra.Command{
		Use:   "reorder <property-id> <url>...",
		Short: "Set the photo order; the first becomes the main image",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if _, err := a.store.Details.Fetch(ctx, args[0]); err != nil {
				return err
			}
			return a.store.Details.ReorderImages(ctx, args[0], args[1:]).Wait()
		}),
	}

	cmd.AddCommand(add, rm, reorder)
	return cmd
}

func featuresCmd() *cobra.Command {
	var indoor, outdoor, climate, eco []string
	cmd := &cobra.Command{
		Use:   "features <property-id>",
		Short: "Replace the selected features of a property",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			id := args[0]
			var local []models.PropertyFeature
			for typ, names := range map[string][]string{
				"indoor":          indoor,
				"outdoor":         outdoor,
				"heating_cooling": climate,
				"eco":             eco,
			} {
				for _, n := range names {
					local = append(local, models.PropertyFeature{PropertyID: id, FeatureName: n, FeatureType: typ})
				}
			}
			a.store.Features.SetLocal(id, local)

			res, err := a.store.Features.Save(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Features saved: %d added, %d removed\n", res.Inserted, res.Removed)
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&indoor, "indoor", nil, "Indoor features")
	cmd.Flags().StringSliceVar(&outdoor, "outdoor", nil, "Outdoor features")
	cmd.Flags().StringSliceVar(&climate, "climate", nil, "Heating and cooling features")
	cmd.Flags().StringSliceVar(&eco, "eco", nil, "Eco features")
	return cmd
}

func enhancementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enhancements",
		Short: "Select paid enhancements for a property",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <property-id> <type>",
			Short: "Select an enhancement",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				if _, err := a.signedIn(ctx); err != nil {
					return err
				}
				if err := a.store.Enhancements.Fetch(ctx, args[0]); err != nil {
					return err
				}
				op := a.store.Enhancements.Add(ctx, args[0], args[1])
				if err := op.Wait(); err != nil {
					return err
				}
				fmt.Printf("Added %s (%s)\n", args[1], op.ID())
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm <property-id> <enhancement-id>",
			Short: "Deselect a pending enhancement",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				if _, err := a.signedIn(ctx); err != nil {
					return err
				}
				if err := a.store.Enhancements.Fetch(ctx, args[0]); err != nil {
					return err
				}
				return a.store.Enhancements.Remove(ctx, args[1]).Wait()
			}),
		},
	)
	return cmd
}

func inspectionsCmd() *cobra.Command {
	var in models.PropertyInspection
	cmd := &cobra.Command{
		Use:   "inspections",
		Short: "Schedule inspection slots",
	}

	add := &cobra.Command{
		Use:   "add <property-id>",
		Short: "Add an inspection slot",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			in.PropertyID = args[0]
			op := a.store.Inspections.Create(ctx, in)
			if err := op.Wait(); err != nil {
				return err
			}
			fmt.Printf("Added inspection %s\n", op.ID())
			return nil
		}),
	}
	add.Flags().StringVar(&in.InspectionDate, "date", "", "YYYY-MM-DD")
	add.Flags().StringVar(&in.StartTime, "start", "", "HH:MM")
	add.Flags().StringVar(&in.EndTime, "end", "", "HH:MM")
	add.Flags().StringVar(&in.InspectionType, "type", models.InspectionOpenHouse, "open-house or private")

	rm := &cobra.Command{
		Use:   "rm <property-id> <inspection-id>",
		Short: "Remove an inspection slot",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}
			if err := a.store.Inspections.Fetch(ctx, args[0]); err != nil {
				return err
			}
			return a.store.Inspections.Remove(ctx, args[1]).Wait()
		}),
	}

	cmd.AddCommand(add, rm)
	return cmd
}

// parseSets turns field=value pairs into a patch. Values that parse as JSON
// (numbers, booleans, null) keep their type; everything else is a string.
func parseSets(sets []string) (storage.Record, error) {
	patch := storage.Record{}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q, want field=value", s)
		}
		patch[k] = jsonValue(v)
	}
	return patch, nil
}

func jsonValue(v string) any {
	var out any
	if err := json.Unmarshal([]byte(v), &out); err == nil {
		switch out.(type) {
		case float64, bool, nil:
			return out
		}
	}
	return v
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
