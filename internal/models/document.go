package models

// Document categories.
const (
	DocEscritura        = "escritura"
	DocContratoArriendo = "contrato_arriendo"
	DocInventario       = "inventario"
	DocFactura          = "factura"
	DocRecibo           = "recibo"
)

// Document is one stored file attached to a property. Version is a monotonic
// integer incremented each time the document is replaced.
type Document struct {
	ID       string `json:"id"`
	Category string `json:"categoria"`
	Filename string `json:"filename"`
	Version  int    `json:"version"`
}

// DocumentUpload carries everything POST /documents needs. Tenant and owner
// ids are only required for lease-contract uploads.
type DocumentUpload struct {
	EntityType string
	EntityID   string
	Category   string
	Filename   string
	Content    []byte
	TenantID   string
	OwnerID    string
	ReplacesID string
}
