package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erazemk/vitrina/internal/blob"
	"github.com/erazemk/vitrina/internal/model"
	"github.com/erazemk/vitrina/internal/store"
)

// listRecord is what every record list holds.
type listRecord interface {
	model.Searchable
	BlobRefs() []string
}

// recordCmds builds the list/get/create/update/delete commands for one list.
type recordCmds[R listRecord, P any] struct {
	app           *app
	what          string
	collection    func(*store.Store) *store.Collection[R, P]
	prepare       func(*R) error
	validatePatch func(*P) error
	header        []string
	row           func(R) []string
}

func newWishlistCmd(a *app) *cobra.Command {
	c := &recordCmds[model.WishlistItem, model.WishlistPatch]{
		app:           a,
		what:          "wishlist item",
		collection:    func(s *store.Store) *store.WishlistStore { return s.Wishlist },
		prepare:       func(w *model.WishlistItem) error { return w.Validate() },
		validatePatch: func(p *model.WishlistPatch) error { return p.Validate() },
		header:        []string{"ID", "CREATED", "NAME", "PHONE", "PRODUCT", "STORE", "PURCHASED"},
		row: func(w model.WishlistItem) []string {
			return []string{w.ID, day(w.CreatedAt), w.Name, w.Phone, w.Product, w.TargetStore, yesNo(w.AlreadyPurchased)}
		},
	}
	return c.command("wishlist", "Customer wishlist requests")
}

func newWarrantyCmd(a *app) *cobra.Command {
	c := &recordCmds[model.WarrantyItem, model.WarrantyPatch]{
		app:        a,
		what:       "warranty",
		collection: func(s *store.Store) *store.WarrantyStore { return s.Warranties },
		prepare: func(w *model.WarrantyItem) error {
			w.ApplyDefaults()
			return w.Validate()
		},
		validatePatch: func(p *model.WarrantyPatch) error { return p.Validate() },
		header:        []string{"ID", "CREATED", "NAME", "STORE", "PURCHASED", "EXPIRES", "STATUS"},
		row: func(w model.WarrantyItem) []string {
			return []string{w.ID, day(w.CreatedAt), w.Name, w.Store, w.PurchaseDate, w.ExpiryDate, w.Status}
		},
	}
	return c.command("warranty", "Warranty claims")
}

func newRequestsCmd(a *app) *cobra.Command {
	c := &recordCmds[model.MaterialRequest, model.MaterialRequestPatch]{
		app:        a,
		what:       "material request",
		collection: func(s *store.Store) *store.MaterialRequestStore { return s.MaterialRequests },
		prepare: func(m *model.MaterialRequest) error {
			m.ApplyDefaults()
			return m.Validate()
		},
		validatePatch: func(p *model.MaterialRequestPatch) error { return p.Validate() },
		header:        []string{"ID", "CREATED", "SECTOR", "DESCRIPTION", "URGENCY", "STATUS"},
		row: func(m model.MaterialRequest) []string {
			return []string{m.ID, day(m.CreatedAt), m.Sector, m.Description, m.Urgency, m.Status}
		},
	}
	return c.command("requests", "Internal material requests")
}

func (c *recordCmds[R, P]) command(use, short string) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}

	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, coll *store.Collection[R, P]) error {
				records, err := coll.List(ctx)
				if err != nil {
					return err
				}
				return c.printTable(cmd.OutOrStdout(), model.Filter(records, query))
			})
		},
	}
	list.Flags().StringVarP(&query, "q", "q", "", "only records containing this text")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, coll *store.Collection[R, P]) error {
				rec, err := coll.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("%s %s not found", c.what, args[0])
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}

	var file string
	create := &cobra.Command{
		Use:   "create --file FILE",
		Short: "Create a record from a JSON file (- for stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			rec, err := parseRecord[R](data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}
			if err := c.prepare(&rec); err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, coll *store.Collection[R, P]) error {
				id, err := coll.Create(ctx, rec)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "JSON file with the record fields")
	_ = create.MarkFlagRequired("file")

	var sets []string
	update := &cobra.Command{
		Use:   "update ID --set field=value...",
		Short: "Change some fields of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseSets[P](sets)
			if err != nil {
				return err
			}
			if err := c.validatePatch(&patch); err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, coll *store.Collection[R, P]) error {
				err := coll.Update(ctx, args[0], patch)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%s %s not found", c.what, args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
				return nil
			})
		},
	}
	update.Flags().StringArrayVar(&sets, "set", nil, "field=value to change (true/false for yes/no fields)")
	_ = update.MarkFlagRequired("set")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a record and its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, coll *store.Collection[R, P]) error {
				rec, err := coll.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if err := coll.Delete(ctx, args[0]); err != nil {
					return err
				}
				if rec != nil {
					c.discardImages(ctx, (*rec).BlobRefs())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

// run opens the session gate and the store and calls fn while signed in.
func (c *recordCmds[R, P]) run(cmd *cobra.Command, fn func(context.Context, *store.Collection[R, P]) error) error {
	gate, err := c.app.openGate()
	if err != nil {
		return err
	}
	defer gate.Close()
	if _, err := gate.Require(); err != nil {
		return fmt.Errorf("%w: run \"%s login\" first", err, appName)
	}

	ctx := cmd.Context()
	s, err := c.app.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, c.collection(s))
}

func (c *recordCmds[R, P]) discardImages(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		return
	}
	blobs, err := blob.NewDir(c.app.cfg.Images.Dir)
	if err != nil {
		c.app.log.Warn("cannot open image dir", zap.Error(err))
		return
	}
	for _, ref := range refs {
		if err := blobs.Delete(ctx, ref); err != nil {
			c.app.log.Warn("failed to delete image", zap.String("ref", ref), zap.Error(err))
		}
	}
}

func (c *recordCmds[R, P]) printTable(w io.Writer, records []R) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(c.header, "\t"))
	for _, r := range records {
		fmt.Fprintln(tw, strings.Join(c.row(r), "\t"))
	}
	return tw.Flush()
}

// parseSets turns field=value pairs into a patch. Unknown fields are errors.
func parseSets[P any](sets []string) (P, error) {
	var patch P
	fields := make(map[string]any, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return patch, fmt.Errorf("invalid --set %q, want field=value", s)
		}
		switch v {
		case "true":
			fields[k] = true
		case "false":
			fields[k] = false
		default:
			fields[k] = v
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return patch, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return patch, fmt.Errorf("invalid --set: %w", err)
	}
	return patch, nil
}

// parseRecord decodes a record file. Unknown fields, including inline image
// data URLs, are errors; images are uploaded through the API.
func parseRecord[R any](data []byte) (R, error) {
	var rec R
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
