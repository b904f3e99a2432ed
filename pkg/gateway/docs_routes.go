package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/DC-AAIA/open-webui-pipelines/docs"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/logger"
	"github.com/DC-AAIA/open-webui-pipelines/pkg/version"
)

const swaggerModelsExpandDepthCollapsed = -1

// setupSwaggerAndDocs wires up Swagger UI and the OpenAPI endpoint with the
// runtime prefix.
func setupSwaggerAndDocs(group *gin.RouterGroup, prefixURL string) {
	docs.SwaggerInfo.Version = version.Get().Version
	docs.SwaggerInfo.BasePath = prefixURL
	docs.SwaggerInfo.Host = ""
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	group.GET("/docs/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL(prefixURL+"/openapi.json"),
		ginSwagger.InstanceName(docs.SwaggerInfo.InstanceName()),
		ginSwagger.DefaultModelsExpandDepth(swaggerModelsExpandDepthCollapsed),
	))
	group.GET("/openapi.json", openAPIHandler())
}

// openAPIHandler converts the swagger v2 document into OpenAPI v3 on the fly.
func openAPIHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())

		raw := docs.SwaggerInfo.ReadDoc()
		if raw == "" || !json.Valid([]byte(raw)) {
			log.Error("swagger v2 JSON not available or invalid")
			writeErrorResponse(c, http.StatusInternalServerError, "swagger spec not available", nil)
			return
		}

		var v2 openapi2.T
		if err := json.Unmarshal([]byte(raw), &v2); err != nil {
			log.Error("failed to unmarshal swagger v2 JSON", "error", err)
			writeErrorResponse(c, http.StatusInternalServerError, "failed to unmarshal swagger v2", err)
			return
		}
		if v2.Host == "" {
			v2.Host = c.Request.Host
		}

		v3, err := openapi2conv.ToV3(&v2)
		if err != nil {
			log.Error("failed to convert swagger v2 to openapi v3", "error", err)
			writeErrorResponse(c, http.StatusInternalServerError, "failed to convert to openapi v3", err)
			return
		}

		payload, err := json.MarshalIndent(v3, "", "  ")
		if err != nil {
			log.Error("failed to marshal openapi v3", "error", err)
			writeErrorResponse(c, http.StatusInternalServerError, "failed to marshal openapi v3", err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
	}
}
