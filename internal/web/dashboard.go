package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/model"
)

// Card is one entity summary on the dashboard.
type Card struct {
	Screen *Screen
	Count  int
	Failed bool
}

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())

	cards := make([]Card, 0, len(s.Screens))
	for _, sc := range s.Screens {
		_, total, err := sess.sets[sc.Entity].list(r.Context(), model.ListParams{PageSize: 1})
		if err != nil {
			if s.authFailed(w, r, sess, err) {
				return
			}
			slog.Warn("failed to count records for dashboard", "entity", sc.Entity, "error", err)
		}
		cards = append(cards, Card{Screen: sc, Count: total, Failed: err != nil})
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Cards []Card
	}{
		PageData: s.page(sess, "Dashboard", ""),
		Cards:    cards,
	})
}
