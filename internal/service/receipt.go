package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"savdopos/backend/internal/domain"
)

// BuildReceipt renders a sale as printable text plus ESC/POS bytes for a
// thermal printer. Which header lines appear is driven by the store's
// receipt settings, so a shop can hide its phone or the seller name without
// a code change.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (domain.ReceiptResponse, error) {
	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	var lines []string
	if settings.ReceiptHeader != "" {
		lines = append(lines, settings.ReceiptHeader)
	}
	if settings.ReceiptShowStoreName {
		lines = append(lines, settings.Name)
	}
	if settings.ReceiptShowAddress && settings.Address != "" {
		lines = append(lines, settings.Address)
	}
	if settings.ReceiptShowPhone && settings.Phone != "" {
		lines = append(lines, settings.Phone)
	}
	lines = append(lines, "========================")
	if settings.ReceiptShowCheckID {
		lines = append(lines, "Chek: "+sale.ID)
	}
	if settings.ReceiptShowDate {
		lines = append(lines, "Sana: "+sale.Date.Format("2006-01-02 15:04:05"))
	}
	if settings.ReceiptShowSeller && sale.SellerID != "" {
		if seller, err := s.repo.GetEmployeeByID(ctx, sale.SellerID); err == nil {
			lines = append(lines, "Sotuvchi: "+seller.Name)
		}
	}
	if settings.ReceiptShowCustomer && sale.CustomerID != "" {
		if customer, err := s.repo.GetCustomerByID(ctx, sale.CustomerID); err == nil {
			lines = append(lines, "Mijoz: "+customer.Name)
		}
	}
	lines = append(lines, "------------------------")

	for _, item := range sale.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		lines = append(lines, fmt.Sprintf("%s x%d", name, item.Qty))
		lines = append(lines, fmt.Sprintf("  %s", formatMoney(item.UnitPriceCents*int64(item.Qty), settings.Currency)))
	}

	lines = append(lines,
		"------------------------",
		"Jami    : "+formatMoney(sale.SubtotalCents, settings.Currency),
	)
	if sale.DiscountCents > 0 {
		lines = append(lines, "Chegirma: "+formatMoney(sale.DiscountCents, settings.Currency))
	}
	lines = append(lines, "To'lov  : "+formatMoney(sale.TotalCents, settings.Currency))
	for _, p := range sale.Payments {
		lines = append(lines, fmt.Sprintf("  %-8s %s", paymentLabel(p.Kind), formatMoney(p.AmountCents, settings.Currency)))
	}
	lines = append(lines, "========================")
	if settings.ReceiptFooter != "" {
		lines = append(lines, settings.ReceiptFooter)
	} else {
		lines = append(lines, "Xaridingiz uchun rahmat!")
	}
	lines = append(lines, "")

	// ESC/POS: init, body, partial cut
	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptResponse{
		SaleID:       sale.ID,
		PreviewText:  strings.Join(lines, "\n"),
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		FileName:     fmt.Sprintf("receipt-%s.bin", sale.ID),
	}, nil
}

// OpenCashDrawer returns the ESC/POS pulse command a printer bridge sends
// to kick the drawer on pin 2. An empty terminal falls back to the
// configured default terminal.
func (s *Service) OpenCashDrawer(_ context.Context, terminalID string) (string, string) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		terminalID = s.defaultTerminal
	}
	command := []byte{0x1b, 0x70, 0x00, 0x19, 0xfa}
	return terminalID, base64.StdEncoding.EncodeToString(command)
}

func formatMoney(cents int64, currency string) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	if frac == 0 {
		return fmt.Sprintf("%d %s", whole, currency)
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, currency)
}

func paymentLabel(kind domain.PaymentKind) string {
	switch kind {
	case domain.PaymentCash:
		return "Naqd"
	case domain.PaymentCard:
		return "Plastik"
	case domain.PaymentTransfer:
		return "O'tkazma"
	case domain.PaymentDebt:
		return "Nasiya"
	default:
		return string(kind)
	}
}
