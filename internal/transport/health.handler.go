package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/utils"

	"go.uber.org/zap"
)

const banner = "<h1>The Iute Integration Server is running.</h1>"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Index handles GET /.
func Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(banner))
}

// Health always answers 200; an unreachable database reports "degraded".
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "ok", "database": "up"}

		if db == nil {
			resp["database"] = "disabled"
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logger.FromCtx(r.Context()).Warn("Database ping failed", zap.Error(err))
				resp["status"] = "degraded"
				resp["database"] = "down"
			}
		}

		utils.WriteJSON(w, http.StatusOK, resp)
	}
}
