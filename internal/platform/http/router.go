package http

import (
	"encoding/json"
	stdhttp "net/http"
	"os"
	"strings"
	"sync"

	"github.com/faeln1/go-checkin-api/internal/app/controllers"
	"github.com/faeln1/go-checkin-api/internal/platform/middleware"
	"github.com/faeln1/go-checkin-api/internal/platform/realtime"
	waLog "go.mau.fi/whatsmeow/util/log"
	yaml "gopkg.in/yaml.v3"
)

const eventPrefix = "/api/Event/"

type RouterConfig struct {
	EventCtrl     *controllers.EventController
	Hub           *realtime.Hub
	Logger        waLog.Logger
	SwaggerEnable bool
	DocsPath      string
	MasterToken   string
	AllowedOrigin string
}

func NewRouter(cfg RouterConfig) stdhttp.Handler {
	mux := stdhttp.NewServeMux()

	mux.HandleFunc("/", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.URL.Path != "/" {
			writeRouterError(w, stdhttp.StatusNotFound, "endpoint not found")
			return
		}
		if r.Method != stdhttp.MethodGet {
			writeRouterError(w, stdhttp.StatusMethodNotAllowed, "method not allowed")
			return
		}

		sessions := 0
		if cfg.Hub != nil {
			sessions = cfg.Hub.Count()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"name":        "Go Check-in API",
			"version":     "0.1.0",
			"description": "Real-time attendance roster for community events",
			"realtime": map[string]interface{}{
				"hub":      "/eventHub",
				"sessions": sessions,
			},
			"endpoints": map[string]string{
				"health":        "/health",
				"communities":   "/api/Event/communities",
				"documentation": "/docs",
				"openapi_yaml":  "/openapi.yaml",
				"openapi_json":  "/openapi.json",
			},
		})
	})

	mux.HandleFunc("/health", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	if cfg.SwaggerEnable {
		registerDocs(mux, cfg.DocsPath)
	}

	if cfg.Hub != nil {
		mux.Handle("/eventHub", cfg.Hub.Handler())
	}

	if cfg.EventCtrl != nil {
		// Leitura é pública; mutações exigem token quando API_MASTER_TOKEN está definido.
		var mutations stdhttp.Handler = stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			routeEventMutation(cfg.EventCtrl, w, r)
		})
		if cfg.MasterToken != "" {
			mutations = middleware.BearerAuth(middleware.MasterToken(cfg.MasterToken))(mutations)
		}

		mux.HandleFunc(eventPrefix, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Method == stdhttp.MethodPost {
				mutations.ServeHTTP(w, r)
				return
			}
			routeEventRead(cfg.EventCtrl, w, r)
		})
	}

	var handler stdhttp.Handler = mux
	handler = middleware.Logging(cfg.Logger)(handler)
	handler = middleware.CORS(cfg.AllowedOrigin)(handler)
	return handler
}

// routeEventRead handles GET /api/Event/{communities|people/{id}|summary/{id}|badge/{id}|report/{id}}.
func routeEventRead(ctrl *controllers.EventController, w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if r.Method != stdhttp.MethodGet {
		w.WriteHeader(stdhttp.StatusMethodNotAllowed)
		return
	}
	segments := splitSegments(strings.TrimPrefix(r.URL.Path, eventPrefix))
	switch {
	case len(segments) == 1 && segments[0] == "communities":
		ctrl.ListCommunities(w, r)
	case len(segments) == 2:
		switch segments[0] {
		case "people":
			ctrl.ListPeople(w, r, segments[1])
		case "summary":
			ctrl.Summary(w, r, segments[1])
		case "badge":
			ctrl.Badge(w, r, segments[1])
		case "report":
			ctrl.ListReports(w, r, segments[1])
		default:
			w.WriteHeader(stdhttp.StatusNotFound)
		}
	default:
		w.WriteHeader(stdhttp.StatusNotFound)
	}
}

// routeEventMutation handles POST /api/Event/{check-in|check-out|report}/{id}.
func routeEventMutation(ctrl *controllers.EventController, w stdhttp.ResponseWriter, r *stdhttp.Request) {
	segments := splitSegments(strings.TrimPrefix(r.URL.Path, eventPrefix))
	if len(segments) != 2 {
		w.WriteHeader(stdhttp.StatusNotFound)
		return
	}
	switch segments[0] {
	case "check-in":
		ctrl.CheckIn(w, r, segments[1])
	case "check-out":
		ctrl.CheckOut(w, r, segments[1])
	case "report":
		ctrl.ArchiveReport(w, r, segments[1])
	default:
		w.WriteHeader(stdhttp.StatusNotFound)
	}
}

func registerDocs(mux *stdhttp.ServeMux, path string) {
	if path == "" {
		path = "docs/openapi.yaml"
	}
	var (
		once     sync.Once
		yamlData []byte
		yamlErr  error
	)
	loadYAML := func() ([]byte, error) {
		once.Do(func() { yamlData, yamlErr = os.ReadFile(path) })
		return yamlData, yamlErr
	}
	mux.HandleFunc("/openapi.yaml", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		data, err := loadYAML()
		if err != nil {
			w.WriteHeader(stdhttp.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.Write(data)
	})
	mux.HandleFunc("/openapi.json", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		data, err := loadYAML()
		if err != nil {
			w.WriteHeader(stdhttp.StatusNotFound)
			return
		}
		var v map[string]interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			w.WriteHeader(stdhttp.StatusInternalServerError)
			return
		}
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			w.WriteHeader(stdhttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(jsonBytes)
	})
	mux.HandleFunc("/docs", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		// Swagger UI via CDN
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<!DOCTYPE html><html><head><title>Check-in API Docs</title><link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/></head><body><div id="swagger-ui"></div><script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script><script>window.onload=()=>{SwaggerUIBundle({url:'/openapi.yaml',dom_id:'#swagger-ui'});};</script></body></html>`))
	})
}

func splitSegments(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, segment := range raw {
		if segment == "" {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func writeRouterError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
