package dto

// DefaultPageLimit tamaño de página cuando la query no trae limit.
const DefaultPageLimit = 20

// PageRequest limit/offset leídos de la query. Un limit mayor a 100 se rechaza, no se recorta.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage completa Limit cuando no viene en la query.
func (p *PageRequest) DefaultPage() {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
}

// PageResponse eco de la página pedida. Count son los elementos devueltos; si Count == Limit
// puede haber más.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// NewPageResponse arma los metadatos para n elementos devueltos.
func NewPageResponse(p PageRequest, n int) PageResponse {
	return PageResponse{Limit: p.Limit, Offset: p.Offset, Count: n}
}

// ErrorResponse cuerpo de error HTTP. Code es estable para los clientes; Message es para humanos.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
