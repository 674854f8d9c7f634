// Package openapi builds the OpenAPI document served to external tool
// integrations (e.g. GPT actions). Those integrations reject OpenAPI 3.1
// constructs, so the document is pinned to 3.0.3 and kept deliberately flat:
// simple types, one path, a bearer security scheme. The document is built
// once and reused across requests.
package openapi

import (
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Info configures the generated document.
type Info struct {
	Title       string
	Version     string
	Description string
	BasePath    string // mount point of the API, e.g. "/api/v1"
}

// Document assembles the downgraded 3.0.3 specification for the gateway.
type Document struct {
	info Info

	once sync.Once
	doc  *openapi3.T
}

// New constructs a Document with the given info.
func New(info Info) *Document {
	if info.Title == "" {
		info.Title = "Dynamics Action Gateway"
	}
	if info.Version == "" {
		info.Version = "1.1.0"
	}
	return &Document{info: info}
}

// Spec returns the cached OpenAPI document, building it on first use.
func (d *Document) Spec() *openapi3.T {
	d.once.Do(func() {
		d.doc = d.build()
	})
	return d.doc
}

func (d *Document) build() *openapi3.T {
	actionReq := openapi3.NewObjectSchema().
		WithProperty("action", openapi3.NewStringSchema()).
		WithProperty("params", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	actionReq.Required = []string{"action"}

	errorResp := openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema()).
		WithProperty("action", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("http_status", openapi3.NewIntegerSchema()).
		WithProperty("graph_error_code", openapi3.NewStringSchema()).
		WithProperty("correlation_id", openapi3.NewStringSchema())

	jsonContent := func(schema *openapi3.Schema) openapi3.Content {
		return openapi3.Content{
			"application/json": openapi3.NewMediaType().WithSchema(schema),
		}
	}

	responses := openapi3.NewResponses()
	addResponse := func(code string, desc string, content openapi3.Content) {
		r := openapi3.NewResponse().WithDescription(desc)
		r.Content = content
		responses.Set(code, &openapi3.ResponseRef{Value: r})
	}
	addResponse("200", "Acción completada exitosamente (respuesta JSON o archivo).", jsonContent(openapi3.NewObjectSchema().WithAnyAdditionalProperties()))
	addResponse("400", "Error en la solicitud (ej. acción desconocida, parámetros inválidos).", jsonContent(errorResp))
	addResponse("401", "No autorizado (problema de credenciales de la API).", jsonContent(errorResp))
	addResponse("422", "Error de validación de la entidad (cuerpo de solicitud malformado).", jsonContent(errorResp))
	addResponse("429", "Límite de velocidad excedido.", jsonContent(errorResp))
	addResponse("500", "Error interno del servidor.", jsonContent(errorResp))

	op := &openapi3.Operation{
		OperationID: "processDynamicAction",
		Summary:     "Procesa una acción dinámica basada en la solicitud.",
		Description: "Recibe un nombre de acción y sus parámetros, y ejecuta la lógica de negocio correspondiente.",
		RequestBody: &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithContent(jsonContent(actionReq)),
		},
		Responses: responses,
		Security: &openapi3.SecurityRequirements{
			openapi3.SecurityRequirement{"bearerAuth": []string{}},
		},
	}

	paths := openapi3.NewPaths()
	paths.Set(d.info.BasePath+"/dynamics", &openapi3.PathItem{Post: op})

	doc := &openapi3.T{
		// Pinned below 3.1 for external tool compatibility.
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       d.info.Title,
			Version:     d.info.Version,
			Description: d.info.Description,
		},
		Servers: openapi3.Servers{
			&openapi3.Server{URL: "/", Description: "Servidor principal"},
		},
		Paths: paths,
		Components: &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearerAuth": &openapi3.SecuritySchemeRef{
					Value: openapi3.NewSecurityScheme().
						WithType("http").
						WithScheme("bearer").
						WithBearerFormat("JWT").
						WithDescription("Token de autorización Bearer"),
				},
			},
		},
	}
	return doc
}
