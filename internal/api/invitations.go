package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/backend"
	"github.com/erazemk/evidenca/internal/mail"
	"github.com/erazemk/evidenca/internal/model"
)

// InvitationsHandler handles invitation side effects.
type InvitationsHandler struct {
	Backend *backend.Backend
	Mailer  mail.Mailer
	BaseURL string
}

// Send emails a newly created invitation. Delivery failures are logged; the
// invitation stays pending and can be revoked and reissued.
func (h *InvitationsHandler) Send(r *http.Request, inv *model.Invitation) {
	msg, err := mail.Invitation(h.BaseURL, inv.Email, inv.ID, inv.Role)
	if err == nil {
		err = h.Mailer.Send(r.Context(), msg)
	}
	if err != nil {
		slog.Error("sending invitation", "id", inv.ID, "email", inv.Email, "error", err)
	}
}

// Revoke handles POST /api/invitations/{id}/revoke.
func (h *InvitationsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := h.Backend.Invitations.Update(r.Context(), id, backend.Patch{
		"status": json.RawMessage(`"` + model.InvitationRevoked + `"`),
	})
	if err != nil {
		writeError(w, r, "invitation", err)
		return
	}
	slog.Info("invitation revoked", "id", id, "user", userOf(r))
	jsonResponse(w, http.StatusOK, inv)
}
