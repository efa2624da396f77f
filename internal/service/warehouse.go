package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"savdopos/backend/internal/domain"
	"savdopos/backend/internal/store"
	"savdopos/backend/internal/xid"
)

func (s *Service) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *Service) CreateWarehouse(ctx context.Context, req domain.WarehouseRequest) (domain.Warehouse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Warehouse{}, fmt.Errorf("%w: warehouse name required", store.ErrInvalidSale)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	warehouse := domain.Warehouse{
		ID:          xid.New("wh"),
		Name:        req.Name,
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Active:      active,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.repo.CreateWarehouse(ctx, warehouse)
	if err != nil {
		return domain.Warehouse{}, err
	}
	s.logAudit(ctx, "warehouse_create", "warehouse", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateWarehouse(ctx context.Context, id string, req domain.WarehouseRequest) (domain.Warehouse, error) {
	existing, err := s.repo.GetWarehouseByID(ctx, id)
	if err != nil {
		return domain.Warehouse{}, err
	}
	updated := *existing
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	if req.Location != "" {
		updated.Location = strings.TrimSpace(req.Location)
	}
	if req.Description != "" {
		updated.Description = strings.TrimSpace(req.Description)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	saved, err := s.repo.UpdateWarehouse(ctx, updated)
	if err != nil {
		return domain.Warehouse{}, err
	}
	s.logAudit(ctx, "warehouse_update", "warehouse", saved.ID, saved.Name)
	return *saved, nil
}

func (s *Service) ListWarehouseStock(ctx context.Context, warehouseID string) ([]domain.WarehouseStock, error) {
	warehouseID, err := s.resolveWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListWarehouseStock(ctx, warehouseID)
}

// AdjustStock is a manual correction: positive qty writes a receipt
// movement, negative an issue movement.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustmentRequest) error {
	if req.Qty == 0 {
		return fmt.Errorf("%w: zero adjustment", store.ErrInvalidSale)
	}
	if req.Return && req.Qty < 0 {
		return fmt.Errorf("%w: a return must add stock", store.ErrInvalidSale)
	}
	if _, err := s.repo.GetProductByID(ctx, req.ProductID); err != nil {
		return err
	}
	warehouseID, err := s.resolveWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return err
	}
	if err := s.repo.AdjustStock(ctx, warehouseID, req.ProductID, req.Qty); err != nil {
		return err
	}

	movementType := domain.MovementReceipt
	if req.Return {
		movementType = domain.MovementReturn
	}
	qty := req.Qty
	if qty < 0 {
		movementType = domain.MovementIssue
		qty = -qty
	}
	if err := s.repo.CreateStockMovement(ctx, domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   req.ProductID,
		WarehouseID: warehouseID,
		Qty:         qty,
		Type:        movementType,
		Date:        time.Now().UTC(),
		Comment:     strings.TrimSpace(req.Comment),
	}); err != nil {
		s.log.Warnw("adjustment movement write failed", "product", req.ProductID, "err", err)
	}
	s.logAudit(ctx, "stock_adjust", "product", req.ProductID, fmt.Sprintf("qty=%d,warehouse=%s", req.Qty, warehouseID))
	return nil
}

func (s *Service) ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 200
	}
	return s.repo.ListStockMovements(ctx, filter)
}

// CreateGoodsReceipt books arrived goods: stock goes up per item, receipt
// movements are written, and each product's purchase price is refreshed to
// the latest intake price.
func (s *Service) CreateGoodsReceipt(ctx context.Context, req domain.GoodsReceiptRequest) (domain.GoodsReceipt, error) {
	if len(req.Items) == 0 {
		return domain.GoodsReceipt{}, fmt.Errorf("%w: no items", store.ErrInvalidSale)
	}
	if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
		return domain.GoodsReceipt{}, err
	}
	warehouseID, err := s.resolveWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return domain.GoodsReceipt{}, err
	}

	var total int64
	for _, item := range req.Items {
		if item.Qty <= 0 || item.PurchasePriceCents < 0 {
			return domain.GoodsReceipt{}, fmt.Errorf("%w: bad receipt item %s", store.ErrInvalidSale, item.ProductID)
		}
		if _, err := s.repo.GetProductByID(ctx, item.ProductID); err != nil {
			return domain.GoodsReceipt{}, err
		}
		total += int64(item.Qty) * item.PurchasePriceCents
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	receipt := domain.GoodsReceipt{
		ID:          xid.New("grn"),
		Date:        now,
		SupplierID:  req.SupplierID,
		WarehouseID: warehouseID,
		DocNumber:   strings.TrimSpace(req.DocNumber),
		Items:       req.Items,
		TotalCents:  total,
		ReceivedBy:  actor.EmployeeID,
	}
	created, err := s.repo.CreateGoodsReceipt(ctx, receipt)
	if err != nil {
		return domain.GoodsReceipt{}, err
	}

	for _, item := range req.Items {
		if err := s.repo.AdjustStock(ctx, warehouseID, item.ProductID, item.Qty); err != nil {
			s.log.Errorw("stock increment failed after receipt write", "receipt", created.ID, "product", item.ProductID, "err", err)
			return domain.GoodsReceipt{}, err
		}
		if err := s.repo.CreateStockMovement(ctx, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   item.ProductID,
			WarehouseID: warehouseID,
			Qty:         item.Qty,
			Type:        domain.MovementReceipt,
			Date:        now,
			RelatedID:   created.ID,
		}); err != nil {
			s.log.Warnw("receipt movement write failed", "receipt", created.ID, "product", item.ProductID, "err", err)
		}
		if product, err := s.repo.GetProductByID(ctx, item.ProductID); err == nil && product.PurchasePriceCents != item.PurchasePriceCents {
			updated := *product
			updated.PurchasePriceCents = item.PurchasePriceCents
			if _, err := s.repo.UpdateProduct(ctx, updated); err != nil {
				s.log.Warnw("purchase price refresh failed", "product", item.ProductID, "err", err)
			}
		}
	}

	s.logAudit(ctx, "goods_receipt", "goods_receipt", created.ID, fmt.Sprintf("supplier=%s,items=%d,total=%d", req.SupplierID, len(req.Items), total))
	return *created, nil
}

func (s *Service) ListGoodsReceipts(ctx context.Context, supplierID string, limit int) ([]domain.GoodsReceipt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListGoodsReceipts(ctx, supplierID, limit)
}

func (s *Service) GetGoodsReceipt(ctx context.Context, id string) (domain.GoodsReceipt, error) {
	r, err := s.repo.GetGoodsReceiptByID(ctx, id)
	if err != nil {
		return domain.GoodsReceipt{}, err
	}
	return *r, nil
}
