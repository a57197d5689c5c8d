// Package http mounts the webhook ingestion endpoint
package http

import (
	"io"
	stdhttp "net/http"

	"stakegate/internal/platform/logger"
	pnet "stakegate/internal/platform/net"
	phttp "stakegate/internal/platform/net/http"
	dom "stakegate/internal/services/webhook/domain"
)

// GitHub never sends webhook bodies anywhere near this; a hard cap keeps
// a bad actor from streaming at the raw-body reader
const maxBodyBytes = 2 << 20

// Handler adapts the ingestion pipeline to HTTP
type Handler struct {
	svc dom.IngesterPort
	log logger.Logger
}

// NewHandler builds the webhook HTTP handler
func NewHandler(svc dom.IngesterPort) *Handler {
	return &Handler{svc: svc, log: *logger.Named("webhook.http")}
}

// Webhook handles POST /webhooks/github. Anything unverified or
// unsupported answers 202 so GitHub marks the delivery done; only an
// internal failure after successful classification answers 500
func (h *Handler) Webhook(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		phttp.JSON(w, stdhttp.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	d := dom.Delivery{
		Body:       body,
		Event:      r.Header.Get("X-GitHub-Event"),
		DeliveryID: r.Header.Get("X-GitHub-Delivery"),
		Signature:  r.Header.Get("X-Hub-Signature-256"),
	}
	ctx := logger.WithRequest(r.Context(), pnet.RequestID(r.Context()), d.DeliveryID)

	res, err := h.svc.Handle(ctx, d)
	if err != nil {
		h.log.Error().Str("delivery_id", d.DeliveryID).Err(err).Msg("webhook forward failed")
		phttp.JSON(w, stdhttp.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	if res.Disposition == dom.DispositionIgnored {
		phttp.JSON(w, stdhttp.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	phttp.JSON(w, stdhttp.StatusOK, map[string]string{
		"status":        "ok",
		"ingest_status": res.IngestStatus,
	})
}
