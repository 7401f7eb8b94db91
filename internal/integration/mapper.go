package integration

import (
	"time"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
)

func movementPayload(evt inventory.MovementPostedEvent) map[string]any {
	return map[string]any{
		"entry_id":     evt.EntryID,
		"item_code":    evt.ItemCode,
		"warehouse_id": evt.WarehouseID,
		"type":         string(evt.Type),
		"qty_in":       evt.QtyIn,
		"qty_out":      evt.QtyOut,
		"rate":         evt.Rate,
		"ref_doctype":  evt.RefDoctype,
		"ref_id":       evt.RefID,
		"posted_at":    evt.PostedAt.Format(time.RFC3339),
	}
}
