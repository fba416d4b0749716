package health

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger reports whether a dependency answers within the context deadline.
// *pgxpool.Pool satisfies it directly; Redis clients go through RedisPinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to the Pinger interface.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

type Status struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Database bool   `json:"database"`
	Redis    bool   `json:"redis"`
}

// HTTPHandler reports readiness. Each non-nil dependency gets pinged with a
// 1s budget; any failure turns the response into a 503.
func HTTPHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		st := Status{OK: true, Message: "ok", Database: true, Redis: true}
		var problems []string

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				st.Database = false
				problems = append(problems, "db ping failed")
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				st.Redis = false
				problems = append(problems, "redis ping failed")
			}
		}
		if len(problems) > 0 {
			st.OK = false
			st.Message = strings.Join(problems, ", ")
		}

		w.Header().Set("Content-Type", "application/json")
		if !st.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	}
}
