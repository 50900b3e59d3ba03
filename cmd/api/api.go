package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/hasssanezzz/logcache/cache"
	"github.com/hasssanezzz/logcache/shared"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type API struct {
	DB       *cache.Cache
	logger   *zap.SugaredLogger
	registry *prometheus.Registry
}

func New(db *cache.Cache, logger *zap.Logger) *API {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		db.Collector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &API{
		DB:       db,
		logger:   logger.Sugar().Named("api"),
		registry: registry,
	}
}

func (api *API) getHandler(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Key")
	if len(key) == 0 {
		http.Error(w, "Key header is required", http.StatusBadRequest)
		return
	}

	value, ok, err := api.DB.Get(key)
	if err != nil {
		api.logger.Errorw("error getting key", "key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, value)
}

func (api *API) postHandler(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Key")
	if len(key) == 0 {
		http.Error(w, "Key header is required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Unable to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := api.DB.Set(key, string(body)); err != nil {
		api.logger.Errorw("error setting key", "key", key, "bytes", len(body), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (api *API) deleteHandler(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Key")
	if len(key) == 0 {
		http.Error(w, "Key header is required", http.StatusBadRequest)
		return
	}

	err := api.DB.Remove(key)
	if err != nil {
		var notFound *shared.ErrKeyNotFound
		if errors.As(err, &notFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		api.logger.Errorw("error removing key", "key", key, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (api *API) keysHandler(w http.ResponseWriter, r *http.Request) {
	stringResponse := new(strings.Builder)
	for _, key := range api.DB.Keys() {
		stringResponse.WriteString(key + "\n")
	}

	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, stringResponse.String())
}

func (api *API) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := api.DB.Stats()
	if err != nil {
		api.logger.Errorw("error reading stats", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	api.writeJSON(w, stats)
}

func (api *API) compactHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.DB.Compact(); err != nil {
		api.logger.Errorw("error compacting", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	api.statsHandler(w, r)
}

func (api *API) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(v); err != nil {
		api.logger.Errorw("error writing response", "error", err)
	}
}

func (api *API) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", api.getHandler)
	mux.HandleFunc("POST /", api.postHandler)
	mux.HandleFunc("PUT /", api.postHandler)
	mux.HandleFunc("DELETE /", api.deleteHandler)
	mux.HandleFunc("GET /keys", api.keysHandler)
	mux.HandleFunc("GET /stats", api.statsHandler)
	mux.HandleFunc("POST /compact", api.compactHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(api.registry, promhttp.HandlerOpts{}))
}
