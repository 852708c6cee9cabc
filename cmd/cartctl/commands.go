package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/cart"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

func productArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", errors.New("product id is required")
	}
	return id, nil
}

// notConfirmed prints a notice instead of failing: the cart was resynced.
func notConfirmed(c *cli.Context, err error) error {
	if errors.Is(err, cart.ErrNotConfirmed) {
		fmt.Fprintln(c.App.ErrWriter, "notice: the change could not be saved, cart refreshed from the server")
		return nil
	}
	return err
}

func showCart(ctx context.Context, c *cli.Context, rt *runtime) error {
	if err := rt.engine.Err(); err != nil {
		fmt.Fprintln(c.App.ErrWriter, "warning: cart could not be loaded:", err)
	}
	return printCart(c, rt.engine)
}

func addLine(ctx context.Context, c *cli.Context, rt *runtime) error {
	id, err := productArg(c)
	if err != nil {
		return err
	}
	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	line := models.CartLine{
		ProductID: id,
		VariantID: c.String("variant"),
		Name:      c.String("name"),
		Image:     c.String("image"),
		UnitPrice: price,
	}
	if err := notConfirmed(c, rt.engine.Add(ctx, line, c.Int("qty"))); err != nil {
		return err
	}
	return printCart(c, rt.engine)
}

func incLine(ctx context.Context, c *cli.Context, rt *runtime) error {
	id, err := productArg(c)
	if err != nil {
		return err
	}
	line := models.CartLine{ProductID: id, VariantID: c.String("variant")}
	if err := notConfirmed(c, rt.engine.Increment(ctx, line)); err != nil {
		return err
	}
	return printCart(c, rt.engine)
}

func decLine(ctx context.Context, c *cli.Context, rt *runtime) error {
	id, err := productArg(c)
	if err != nil {
		return err
	}
	if err := notConfirmed(c, rt.engine.Decrement(ctx, id, c.String("variant"))); err != nil {
		return err
	}
	return printCart(c, rt.engine)
}

func removeLine(ctx context.Context, c *cli.Context, rt *runtime) error {
	id, err := productArg(c)
	if err != nil {
		return err
	}
	if err := notConfirmed(c, rt.engine.Remove(ctx, id, c.String("variant"), c.String("cartid"))); err != nil {
		return err
	}
	return printCart(c, rt.engine)
}

func login(ctx context.Context, c *cli.Context, rt *runtime) error {
	id := &auth.Identity{UserID: c.String("user"), Token: c.String("token")}
	if !id.Valid() {
		return cart.ErrNoIdentity
	}
	if cur := rt.engine.Identity(); cur != nil && cur.UserID != id.UserID {
		if err := rt.engine.Logout(ctx); err != nil {
			return err
		}
	}
	if err := rt.session.Save(id); err != nil {
		return err
	}
	rt.signal.Set(id)

	report, err := rt.engine.Login(ctx, *id)
	if report != nil {
		fmt.Fprintf(c.App.Writer, "merged %d guest line(s)\n", len(report.Merged))
		for _, f := range report.Failed {
			fmt.Fprintf(c.App.ErrWriter, "not merged: %s x%d: %v\n", f.Line.Key(), f.Line.Quantity, f.Err)
		}
	}
	if err != nil {
		fmt.Fprintln(c.App.ErrWriter, "warning: cart could not be loaded:", err)
	}
	return printCart(c, rt.engine)
}

func logout(ctx context.Context, c *cli.Context, rt *runtime) error {
	if err := rt.session.Delete(); err != nil {
		return err
	}
	rt.signal.Clear()
	if err := rt.engine.Logout(ctx); err != nil {
		return err
	}
	return printCart(c, rt.engine)
}

func clearCart(ctx context.Context, c *cli.Context, rt *runtime) error {
	if err := rt.engine.Clear(ctx); err != nil {
		return err
	}
	return printCart(c, rt.engine)
}

func printCart(c *cli.Context, e *cart.Engine) error {
	snap := e.Snapshot()
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Mode string `json:"mode"`
			models.Snapshot
		}{Mode: e.Mode().String(), Snapshot: snap})
	}
	return writeTable(c.App.Writer, e.Mode(), snap)
}

func writeTable(w io.Writer, mode cart.Mode, snap models.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cart (%s): %d item(s)\n", mode, snap.TotalQuantity)
	if len(snap.Lines) == 0 {
		return tw.Flush()
	}
	fmt.Fprintln(tw, "PRODUCT\tVARIANT\tNAME\tPRICE\tQTY\tCARTID")
	for _, l := range snap.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", l.ProductID, l.VariantID, l.Name, l.UnitPrice.StringFixed(2), l.Quantity, l.ServerLineID)
	}
	return tw.Flush()
}
