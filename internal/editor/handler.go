package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvbuilder-backend/internal/docs"
	"cvbuilder-backend/internal/editor/autosave"
	"cvbuilder-backend/internal/editor/forms"
	"cvbuilder-backend/internal/editor/state"
	"cvbuilder-backend/internal/notify"
	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
	"cvbuilder-backend/internal/usage"
)

const maxPhotoBytes = 5 << 20

var allowedPhotoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Handler exposes the editor session surface.
type Handler struct {
	Registry *Registry
	Docs     *docs.Service
	Usage    *usage.Service
	// Notifier receives save-failure notifications from sessions; Inbox is
	// the in-process store the list/dismiss endpoints read from.
	Notifier notify.Notifier
	Inbox    *notify.MemoryNotifier

	// QuietWindow overrides the autosave quiet window; zero keeps the
	// default.
	QuietWindow time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(reg *Registry, docsSvc *docs.Service, usageSvc *usage.Service, notifier notify.Notifier, inbox *notify.MemoryNotifier) *Handler {
	return &Handler{
		Registry: reg,
		Docs:     docsSvc,
		Usage:    usageSvc,
		Notifier: notifier,
		Inbox:    inbox,
	}
}

// RegisterRoutes attaches editor routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/editor/sessions", h.openSession)
	rg.GET("/editor/sessions/:id", h.getSession)
	rg.DELETE("/editor/sessions/:id", h.closeSession)

	rg.PUT("/editor/sessions/:id/sections/:section", h.putSection)
	rg.POST("/editor/sessions/:id/sections/:section/reorder", h.reorderSection)

	rg.PUT("/editor/sessions/:id/photo", h.putPhoto)
	rg.DELETE("/editor/sessions/:id/photo", h.deletePhoto)

	rg.POST("/editor/sessions/:id/retry", h.retrySave)

	rg.GET("/editor/sessions/:id/notifications", h.listNotifications)
	rg.DELETE("/editor/sessions/:id/notifications/:nid", h.dismissNotification)
}

type openSessionRequest struct {
	Kind       string `json:"kind"`
	DocumentID string `json:"documentId"`
}

func (h *Handler) openSession(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}

	kind := docs.Kind(req.Kind)
	if kind != docs.KindResume && kind != docs.KindCoverLetter {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unknown document kind", gin.H{
			"kind": req.Kind,
		})
		return
	}

	var doc docs.Document
	if req.DocumentID == "" {
		ok, _, err := h.Usage.CanCreateDocument(c.Request.Context(), userID)
		if err != nil {
			respondInternal(c, err, "failed to check entitlements")
			return
		}
		if !ok {
			respond.Error(c, http.StatusForbidden, "upgrade_required", "document limit reached for your plan", nil)
			return
		}
		doc = docs.Document{UserID: userID, Kind: kind}
	} else {
		var err error
		doc, err = h.Docs.Get(c.Request.Context(), userID, req.DocumentID)
		if err != nil {
			respondDocsError(c, err)
			return
		}
		if doc.Kind != kind {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "document kind mismatch", nil)
			return
		}
	}

	saver := h.saverFor(userID)
	sess := newSession(userID, doc, saver, h.Notifier, h.QuietWindow, nil)
	if err := h.Registry.Add(sess); err != nil {
		sess.Sync.Close()
		if errors.Is(err, ErrSessionExists) {
			respond.Error(c, http.StatusConflict, "conflict", "document is already open in another session", nil)
			return
		}
		respondInternal(c, err, "failed to open session")
		return
	}

	respond.JSON(c, http.StatusCreated, h.sessionView(sess))
}

// saverFor binds the persistence collaborator to the authenticated user.
func (h *Handler) saverFor(userID string) autosave.Saver {
	return autosave.SaverFunc(func(ctx context.Context, p autosave.Payload) (docs.SaveResult, error) {
		doc := p.Doc
		doc.ID = p.DocumentID
		doc.UserID = userID
		return h.Docs.Upsert(ctx, userID, doc, p.Photo)
	})
}

func (h *Handler) getSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	respond.JSON(c, http.StatusOK, h.sessionView(sess))
}

func (h *Handler) closeSession(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	sess, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}
	if sess.UserID != userID {
		respond.Error(c, http.StatusForbidden, "forbidden", "session belongs to another user", nil)
		return
	}
	if err := h.Registry.Remove(sess.ID); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}
	h.Inbox.Drop(sess.ID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) putSection(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	section := c.Param("section")
	if !sectionAllowed(sess.Kind, section) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unknown section for this document kind", gin.H{
			"section": section,
		})
		return
	}

	patch, fieldErrs, err := h.decodeSection(c, sess, section)
	if err != nil {
		if errors.Is(err, errEntitlementLookup) {
			respondInternal(c, err, "failed to check entitlements")
			return
		}
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	if len(fieldErrs) > 0 {
		// invalid input never reaches the state store
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "section failed validation", gin.H{
			"fields": fieldErrs,
		})
		return
	}

	sess.Store.Merge(patch)
	sess.Sync.Changed()

	respond.JSON(c, http.StatusOK, h.sessionView(sess))
}

// decodeSection binds and validates the section body. The returned error
// covers malformed JSON and failed entitlement lookups; schema failures
// come back as field errors.
func (h *Handler) decodeSection(c *gin.Context, sess *Session, section string) (state.Patch, forms.FieldErrors, error) {
	switch section {
	case "details":
		var f forms.DetailsForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "styling":
		var f forms.StylingForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		errs, err := h.checkStylingEntitlements(c, sess, f)
		if err != nil {
			return state.Patch{}, nil, err
		}
		if errs != nil {
			return state.Patch{}, errs, nil
		}
		return patchOf(f.Validate())
	case "contact":
		var f forms.ContactForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "experiences":
		var f forms.ExperiencesForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "educations":
		var f forms.EducationsForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "achievements":
		var f forms.AchievementsForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "recipients":
		var f forms.RecipientsForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "jobDescriptions":
		var f forms.JobDescriptionsForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	case "prose":
		var f forms.ProseForm
		if err := c.ShouldBindJSON(&f); err != nil {
			return state.Patch{}, nil, err
		}
		return patchOf(f.Validate())
	}
	return state.Patch{}, nil, errors.New("unknown section")
}

func patchOf(p state.Patch, errs forms.FieldErrors) (state.Patch, forms.FieldErrors, error) {
	return p, errs, nil
}

// errEntitlementLookup marks a failed plan lookup so the handler can reject
// the gated change instead of letting it through.
var errEntitlementLookup = errors.New("entitlement lookup failed")

// checkStylingEntitlements rejects styling changes the user's plan does not
// include. Keeping the document's current values never requires a feature.
// A lookup failure rejects the change too; the gate never fails open.
func (h *Handler) checkStylingEntitlements(c *gin.Context, sess *Session, f forms.StylingForm) (forms.FieldErrors, error) {
	cur := sess.Store.Snapshot().Doc.Styling
	errs := forms.FieldErrors{}

	if f.ThemeColor != cur.ThemeColor || f.BorderStyle != cur.BorderStyle {
		ok, err := h.Usage.CanUse(c.Request.Context(), sess.UserID, usage.FeatureCustomStyling)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errEntitlementLookup, err)
		}
		if !ok {
			errs["themeColor"] = "custom styling requires a Pro plan"
		}
	}
	if f.FontFamily != cur.FontFamily {
		ok, err := h.Usage.CanUse(c.Request.Context(), sess.UserID, usage.FeatureCustomFont)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errEntitlementLookup, err)
		}
		if !ok {
			errs["fontFamily"] = "custom fonts require a Pro plan"
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// reorderSection permutes a repeated section without validating record
// content. A reorder is a pure permutation of records the store already
// holds, so partially filled rows keep their draft content.
func (h *Handler) reorderSection(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	section := c.Param("section")
	if !sectionAllowed(sess.Kind, section) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unknown section for this document kind", gin.H{
			"section": section,
		})
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}

	doc := sess.Store.Snapshot().Doc
	var patch state.Patch
	var err error
	switch section {
	case "experiences":
		var moved []docs.Experience
		moved, err = forms.Move(doc.Experiences, req.From, req.To)
		patch.Experiences = &moved
	case "educations":
		var moved []docs.Education
		moved, err = forms.Move(doc.Educations, req.From, req.To)
		patch.Educations = &moved
	case "achievements":
		var moved []docs.Achievement
		moved, err = forms.Move(doc.Achievements, req.From, req.To)
		patch.Achievements = &moved
	case "recipients":
		var moved []docs.Recipient
		moved, err = forms.Move(doc.Recipients, req.From, req.To)
		patch.Recipients = &moved
	case "jobDescriptions":
		var moved []docs.JobDescriptionEntry
		moved, err = forms.Move(doc.JobDescriptions, req.From, req.To)
		patch.JobDescriptions = &moved
	default:
		respond.Error(c, http.StatusBadRequest, "invalid_request", "section is not reorderable", gin.H{
			"section": section,
		})
		return
	}
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	sess.Store.Merge(patch)
	sess.Sync.Changed()

	respond.JSON(c, http.StatusOK, h.sessionView(sess))
}

func (h *Handler) putPhoto(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "photo file is required", nil)
		return
	}
	if fileHeader.Size > maxPhotoBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "photo exceeds the 5MB limit", nil)
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if _, allowed := allowedPhotoTypes[contentType]; !allowed {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unsupported photo type", gin.H{
			"contentType": contentType,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondInternal(c, err, "failed to read photo")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		respondInternal(c, err, "failed to read photo")
		return
	}
	if int64(len(data)) > maxPhotoBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "photo exceeds the 5MB limit", nil)
		return
	}

	meta := docs.PhotoMeta{
		Name:        fileHeader.Filename,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
	if raw := strings.TrimSpace(c.PostForm("lastModified")); raw != "" {
		// client-supplied millisecond timestamp; re-uploading an unchanged
		// file fingerprints equal and skips a save
		if ms, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			meta.LastModified = ms
		}
	}

	sess.Store.SetPhotoUpload(meta, data)
	sess.Sync.Changed()

	respond.JSON(c, http.StatusOK, h.sessionView(sess))
}

func (h *Handler) deletePhoto(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Store.RemovePhoto()
	sess.Sync.Changed()
	respond.JSON(c, http.StatusOK, h.sessionView(sess))
}

// retrySave resends the failed payload. The call blocks until the save
// resolves, so the response carries the outcome.
func (h *Handler) retrySave(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Sync.Retry()
	respond.JSON(c, http.StatusOK, h.sessionView(sess))
}

func (h *Handler) listNotifications(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	items := h.Inbox.List(sess.ID)
	if items == nil {
		items = []notify.Notification{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) dismissNotification(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if !h.Inbox.Dismiss(sess.ID, c.Param("nid")) {
		respond.Error(c, http.StatusNotFound, "not_found", "notification not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// session fetches the request's session, enforces ownership, and records
// activity.
func (h *Handler) session(c *gin.Context) (*Session, bool) {
	userID := middleware.UserIDFromContext(c)
	sess, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return nil, false
	}
	if sess.UserID != userID {
		respond.Error(c, http.StatusForbidden, "forbidden", "session belongs to another user", nil)
		return nil, false
	}
	sess.Touch()
	c.Set("sessionId", sess.ID)
	if docID := sess.DocumentID(); docID != "" {
		c.Set("documentId", docID)
	}
	c.Set("syncState", sess.Sync.State().String())
	return sess, true
}

func (h *Handler) sessionView(sess *Session) gin.H {
	snap := sess.Store.Snapshot()
	view := gin.H{
		"sessionId":  sess.ID,
		"kind":       sess.Kind,
		"path":       sess.Path(),
		"documentId": sess.DocumentID(),
		"syncState":  sess.Sync.State().String(),
		"document":   snap.Doc,
		"photo":      snap.Photo,
	}
	if err := sess.Sync.LastError(); err != nil {
		view["lastError"] = err.Error()
	}
	return view
}

var resumeSections = map[string]struct{}{
	"details": {}, "styling": {}, "contact": {},
	"experiences": {}, "educations": {}, "achievements": {},
}

var coverLetterSections = map[string]struct{}{
	"details": {}, "styling": {}, "contact": {},
	"recipients": {}, "jobDescriptions": {}, "prose": {},
	"experiences": {},
}

func sectionAllowed(kind docs.Kind, section string) bool {
	if kind == docs.KindCoverLetter {
		_, ok := coverLetterSections[section]
		return ok
	}
	_, ok := resumeSections[section]
	return ok
}

func respondDocsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, docs.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, docs.ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "document belongs to another user", nil)
	case errors.Is(err, docs.ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	default:
		respondInternal(c, err, "document operation failed")
	}
}

func respondInternal(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
