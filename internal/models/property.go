package models

// Property states as the backend reports them.
const (
	StateDisponible       = "disponible"
	StateArrendada        = "arrendada"
	StateEnVenta          = "en_venta"
	StateArrendadaEnVenta = "arrendada_en_venta"
	StateMantencion       = "mantencion"
	StateSuspendida       = "suspendida"
	StateBaja             = "baja"
)

// Property types.
const (
	TypeCasa         = "casa"
	TypeDepartamento = "departamento"
	TypeOficina      = "oficina"
	TypeLocal        = "local"
	TypeTerreno      = "terreno"
)

// PropertySummary is one row of GET /properties. Immutable once loaded for
// the duration of a render cycle; the whole list is replaced on reload.
type PropertySummary struct {
	ID           string   `json:"id"`
	Code         string   `json:"codigo"`
	AddressLine  string   `json:"direccion_linea1"`
	Comuna       string   `json:"comuna"`
	Region       string   `json:"region"`
	Type         string   `json:"tipo"`
	State        string   `json:"estado_actual"`
	RentValue    *float64 `json:"valor_arriendo,omitempty"`
	SaleValue    *float64 `json:"valor_venta,omitempty"`
	PublishedAt  *Date    `json:"fecha_publicacion,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
}

// PropertyCreate is the POST /properties payload: a summary minus the id.
type PropertyCreate struct {
	Code        string   `json:"codigo"`
	AddressLine string   `json:"direccion_linea1"`
	Comuna      string   `json:"comuna"`
	Region      string   `json:"region"`
	Type        string   `json:"tipo"`
	State       string   `json:"estado_actual"`
	RentValue   *float64 `json:"valor_arriendo,omitempty"`
	SaleValue   *float64 `json:"valor_venta,omitempty"`
	PublishedAt *Date    `json:"fecha_publicacion,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// PropertyDetail is the full record from GET /properties/{id}/full: the
// summary's identity plus contracts, documents, charges and state history.
type PropertyDetail struct {
	ID              string            `json:"id"`
	Code            string            `json:"codigo"`
	CurrentContract *Contract         `json:"current_contract,omitempty"`
	Contracts       []Contract        `json:"contracts"`
	Documents       []Document        `json:"documents"`
	Charges         []Charge          `json:"charges"`
	StateHistory    []StateTransition `json:"state_history"`
}
