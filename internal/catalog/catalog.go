// Package catalog implements product creation and editing on top of the
// gateway, including the multi-size variant flow: one form submission can
// create a whole size run sharing a product family code.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
)

// productCodePattern is the family-code format: three letters, a dash,
// three digits, e.g. ELB-001.
var productCodePattern = regexp.MustCompile(`^[A-Z]{3}-\d{3}$`)

// NormalizeProductCode uppercases and trims a family code. Empty stays
// empty; anything else must match the pattern.
func NormalizeProductCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	if !productCodePattern.MatchString(code) {
		return "", fmt.Errorf("%w: product code %q must match AAA-000", domain.ErrInvalidInput, code)
	}
	return code, nil
}

// VariantInput is the multi-size creation form: shared fields plus one row
// per size.
type VariantInput struct {
	ProductCode string              `json:"product_code"`
	Category    string              `json:"category"`
	Name        string              `json:"name"`
	Color       string              `json:"color"`
	BuyPrice    *float64            `json:"buy_price"`
	SellPrice   float64             `json:"sell_price"`
	Variants    []domain.VariantRow `json:"variants"`
}

type Service struct {
	client *gateway.Client
}

func NewService(client *gateway.Client) *Service {
	return &Service{client: client}
}

func (s *Service) validateVariants(rows []domain.VariantRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: at least one size row required", domain.ErrInvalidInput)
	}
	seen := map[string]bool{}
	for i, row := range rows {
		size := strings.TrimSpace(row.Size)
		if size == "" {
			return fmt.Errorf("%w: size required on row %d", domain.ErrInvalidInput, i+1)
		}
		key := strings.ToUpper(size)
		if seen[key] {
			return fmt.Errorf("%w: duplicate size %q", domain.ErrInvalidInput, size)
		}
		seen[key] = true
		if row.StoreStart < 0 || row.WarehouseStart < 0 {
			return fmt.Errorf("%w: negative stock on row %d", domain.ErrInvalidInput, i+1)
		}
		if row.StoreStart+row.WarehouseStart == 0 {
			return fmt.Errorf("%w: row %d has no stock", domain.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// CreateVariants creates one product per size row. When the family code is
// left blank it is learned from the first product the backend creates, so
// the rest of the run lands under the same family. Creation is sequential
// and stops at the first backend rejection; already created sizes stay.
func (s *Service) CreateVariants(ctx context.Context, input VariantInput) ([]domain.CreatedProduct, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalidInput)
	}
	if input.SellPrice <= 0 {
		return nil, fmt.Errorf("%w: sell price must be positive", domain.ErrInvalidInput)
	}
	if input.BuyPrice != nil && *input.BuyPrice < 0 {
		return nil, fmt.Errorf("%w: buy price cannot be negative", domain.ErrInvalidInput)
	}
	code, err := NormalizeProductCode(input.ProductCode)
	if err != nil {
		return nil, err
	}
	if err := s.validateVariants(input.Variants); err != nil {
		return nil, err
	}

	created := make([]domain.CreatedProduct, 0, len(input.Variants))
	for _, row := range input.Variants {
		size := strings.TrimSpace(row.Size)
		payload := domain.AddProductPayload{
			Name:           name,
			SellPrice:      input.SellPrice,
			BuyPrice:       input.BuyPrice,
			Stock:          row.StoreStart + row.WarehouseStart,
			StoreStart:     row.StoreStart,
			WarehouseStart: row.WarehouseStart,
			Size:           &size,
		}
		if code != "" {
			c := code
			payload.ProductCode = &c
		}
		if category := strings.TrimSpace(input.Category); category != "" {
			payload.Category = &category
		}
		if color := strings.TrimSpace(input.Color); color != "" {
			payload.Color = &color
		}

		result, err := s.client.AddProduct(ctx, payload)
		if err != nil {
			return created, err
		}
		created = append(created, result)
		if code == "" && result.ProductCode != "" {
			code = result.ProductCode
		}
	}
	return created, nil
}

// Update passes a product edit through after normalizing the family code.
func (s *Service) Update(ctx context.Context, payload domain.UpdateProductPayload) error {
	if strings.TrimSpace(payload.Barcode) == "" {
		return fmt.Errorf("%w: barcode required", domain.ErrInvalidInput)
	}
	if payload.ProductCode != nil {
		code, err := NormalizeProductCode(*payload.ProductCode)
		if err != nil {
			return err
		}
		payload.ProductCode = &code
	}
	if payload.SellPrice != nil && *payload.SellPrice <= 0 {
		return fmt.Errorf("%w: sell price must be positive", domain.ErrInvalidInput)
	}
	return s.client.UpdateProduct(ctx, payload)
}

// Delete removes a product by barcode.
func (s *Service) Delete(ctx context.Context, barcode string) error {
	if strings.TrimSpace(barcode) == "" {
		return fmt.Errorf("%w: barcode required", domain.ErrInvalidInput)
	}
	return s.client.DeleteProduct(ctx, barcode)
}
