package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"storefront/internal/app"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/models"
)

const maxNameWidth = 28

// emit writes v as indented JSON or through the text renderer
func emit(w io.Writer, format string, v any, text func(io.Writer) error) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func renderCart(w io.Writer, snap cart.Snapshot) error {
	if len(snap.Lines) == 0 {
		_, err := fmt.Fprintln(w, "Your cart is empty")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-28s %5s %10s %10s\n", "ID", "PRODUCT", "QTY", "PRICE", "TOTAL")
	for _, l := range snap.Lines {
		fmt.Fprintf(&b, "%-5d %-28s %5d %10s %10s\n",
			l.ProductID, truncate(l.Name), l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal().StringFixed(2))
	}
	b.WriteString("\n")
	t := snap.Totals
	fmt.Fprintf(&b, "%-10s %10d\n", "Items", t.ItemCount)
	fmt.Fprintf(&b, "%-10s %10s\n", "Subtotal", t.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "%-10s %10s\n", "Tax", t.Tax.StringFixed(2))
	fmt.Fprintf(&b, "%-10s %10s\n", "Shipping", t.Shipping.StringFixed(2))
	fmt.Fprintf(&b, "%-10s %10s\n", "Total", t.Total.StringFixed(2))
	if snap.State == cart.StateSubmitting {
		b.WriteString("(checkout in progress)\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderCatalog(w io.Writer, v catalog.View) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", v.Mode)
	if v.Error != "" {
		fmt.Fprintf(&b, "! %s\n", v.Error)
	}
	if len(v.Categories) > 0 {
		names := make([]string, 0, len(v.Categories))
		for _, c := range v.Categories {
			names = append(names, fmt.Sprintf("%d %s", c.ID, c.Name))
		}
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("\n")

	if len(v.Products) == 0 {
		b.WriteString("No products match\n")
	} else {
		fmt.Fprintf(&b, "%-5s %-28s %10s\n", "ID", "NAME", "PRICE")
		for _, p := range v.Products {
			fmt.Fprintf(&b, "%-5d %-28s %10s\n", p.ID, truncate(p.DisplayName()), p.Price.StringFixed(2))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderOrders(w io.Writer, orders []models.OrderRecord) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No orders yet")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %10s  %s\n", "ID", "STATUS", "TOTAL", "DELIVER TO")
	for _, o := range orders {
		fmt.Fprintf(&b, "%-6d %-10s %10s  %s\n", o.ID, o.Status, o.TotalPrice.StringFixed(2), o.DeliveryAddress)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderOrder(w io.Writer, o *models.OrderRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d (%s)\n", o.ID, o.Status)
	fmt.Fprintf(&b, "Deliver to: %s, %s\n", o.DeliveryAddress, o.DeliveryPhone)
	fmt.Fprintf(&b, "Total: %s\n", o.TotalPrice.StringFixed(2))
	for _, it := range o.Items {
		fmt.Fprintf(&b, "  item %d x%d @ %s\n", it.ItemID, it.Quantity, it.Price.StringFixed(2))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderReceipt(w io.Writer, r *models.OrderReceipt) error {
	var b strings.Builder
	if r.OrderID > 0 {
		fmt.Fprintf(&b, "Order #%d placed", r.OrderID)
	} else {
		b.WriteString("Order placed")
	}
	if r.Status != "" {
		fmt.Fprintf(&b, " (%s)", r.Status)
	}
	b.WriteString("\n")
	if r.Message != "" {
		fmt.Fprintf(&b, "%s\n", r.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderSession(w io.Writer, s *models.Session) error {
	_, err := fmt.Fprintf(w, "Logged in as %s (user %d)\n", s.User.Email, s.User.ID)
	return err
}

func renderBanner(w io.Writer, b *app.Banner) error {
	if b == nil {
		return nil
	}
	mark := "ok"
	if b.Kind == app.BannerError {
		mark = "error"
	}
	_, err := fmt.Fprintf(w, "[%s] %s\n", mark, b.Message)
	return err
}

// renderReport pretty prints a backend report document
func renderReport(w io.Writer, r models.Report) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r, "", "  "); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxNameWidth {
		return s
	}
	return string(r[:maxNameWidth-3]) + "..."
}
