package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"farmgate/authz"
	"farmgate/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// SlipPayload returns deliveryID|orderID|signature for the hand-off QR code.
func SlipPayload(secret []byte, deliveryID, orderID string) string {
	data := fmt.Sprintf("%s|%s", deliveryID, orderID)
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s|%s", data, sig)
}

// VerifySlip checks a scanned payload and returns the ids it carries.
func VerifySlip(secret []byte, payload string) (deliveryID, orderID string, ok bool) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return "", "", false
	}
	want := SlipPayload(secret, parts[0], parts[1])
	if !hmac.Equal([]byte(want), []byte(payload)) {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Slip renders the hand-off slip PDF for one of the agent's deliveries.
func (s *Service) Slip(ctx context.Context, actor models.Actor, id string) ([]byte, error) {
	if err := s.authz.Check(actor, authz.ObjDelivery, authz.ActView); err != nil {
		return nil, err
	}
	d, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetOrder(ctx, d.Order)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	qrPNG, err := qrcode.Encode(SlipPayload(s.slipSecret, d.ID, o.ID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Delivery Slip")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Delivery ID: %s", d.ID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Order ID: %s", o.ID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Status: %s", d.Status))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Total: $%s", o.TotalPrice.StringFixed(2)))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 10, "Items")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Products {
		pdf.Cell(0, 8, fmt.Sprintf("%s  x%d  @ $%s", it.Product, it.PurchaseAmount, it.UnitPrice.StringFixed(2)))
		pdf.Ln(6)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render slip: %w", err)
	}
	return buf.Bytes(), nil
}
