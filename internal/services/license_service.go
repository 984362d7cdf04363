// Package services holds the business logic between the HTTP transport and
// the store: license issuance and activation, offline file handling, admin
// auth, and the background expiry sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "spcpulse/internal/errors"
	"spcpulse/internal/infrastructure"
	"spcpulse/internal/license"
	"spcpulse/internal/store"
)

// issueKeyAttempts bounds key-collision retries. Five misses in a 32^16
// keyspace means the random source is broken, not that we got unlucky.
const issueKeyAttempts = 5

// LicenseService provides business logic for license operations
type LicenseService interface {
	Issue(ctx context.Context, req IssueRequest) (*LicenseView, error)
	Get(ctx context.Context, key string) (*LicenseView, error)
	List(ctx context.Context, f store.Filter) ([]LicenseView, error)
	Activate(ctx context.Context, req ActivateRequest) (*ActivationResult, error)
	Revoke(ctx context.Context, key string) error
	Transfer(ctx context.Context, key string) error
	GenerateOfflineFile(ctx context.Context, key, fingerprint string) (*OfflineFile, error)
	ValidateOfflineFile(ctx context.Context, content, fingerprint string, meta RequestMeta) license.FileValidation
	Heartbeat(ctx context.Context, key, fingerprint string, meta RequestMeta) (*HeartbeatResult, error)
	Statistics(ctx context.Context) (*store.Statistics, error)
	Audit(ctx context.Context, key string, limit int) ([]store.AuditEntry, error)
	SweepExpired(ctx context.Context) (int, error)
}

// IssueRequest describes a new license to create.
type IssueRequest struct {
	Type         license.Type
	CompanyName  string
	ContactEmail string
	ExpiresAt    *time.Time
}

// RequestMeta carries caller attribution for the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ActivateRequest describes an activation attempt.
type ActivateRequest struct {
	Key         string
	Fingerprint string
	Meta        RequestMeta
}

// LicenseView is the external representation of a license record. Status
// is always the effective status; the stored one never leaves the service.
type LicenseView struct {
	LicenseKey   string               `json:"license_key"`
	Type         license.Type         `json:"type"`
	Status       license.Status       `json:"status"`
	CompanyName  string               `json:"company_name"`
	ContactEmail string               `json:"contact_email,omitempty"`
	Entitlements license.Entitlements `json:"entitlements"`
	Bound        bool                 `json:"bound"`
	IssuedAt     time.Time            `json:"issued_at"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	ActivatedAt  *time.Time           `json:"activated_at,omitempty"`
}

// ActivationResult reports a successful activation.
type ActivationResult struct {
	License     LicenseView `json:"license"`
	Reactivated bool        `json:"reactivated"`
}

// OfflineFile is a generated offline license artifact. It is derived on
// demand and never persisted; only the audit trail records the issuance.
type OfflineFile struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// HeartbeatResult reports a liveness check-in.
type HeartbeatResult struct {
	Status    license.Status `json:"status"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

type licenseService struct {
	store   *store.Store
	signer  *license.Signer
	logger  *slog.Logger
	metrics *infrastructure.LicenseMetrics
	now     func() time.Time
}

// NewLicenseService creates the license service. Metrics may be nil (tests).
func NewLicenseService(st *store.Store, signer *license.Signer, logger *slog.Logger, metrics *infrastructure.LicenseMetrics) LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		store:   st,
		signer:  signer,
		logger:  logger.With(slog.String("service", "license")),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *licenseService) view(rec *store.Record) LicenseView {
	return LicenseView{
		LicenseKey:   rec.LicenseKey,
		Type:         rec.Type,
		Status:       rec.EffectiveStatus(s.now()),
		CompanyName:  rec.CompanyName,
		ContactEmail: rec.ContactEmail,
		Entitlements: license.Entitlements(rec.Entitlements),
		Bound:        rec.HardwareFingerprint != nil,
		IssuedAt:     rec.IssuedAt,
		ExpiresAt:    rec.ExpiresAt,
		ActivatedAt:  rec.ActivatedAt,
	}
}

func (s *licenseService) Issue(ctx context.Context, req IssueRequest) (*LicenseView, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown license type %q", apperrors.ErrInvalidParameter, req.Type)
	}
	if req.CompanyName == "" {
		return nil, fmt.Errorf("%w: company name required", apperrors.ErrMissingParameter)
	}
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry must be in the future", apperrors.ErrInvalidParameter)
	}

	var rec *store.Record
	for attempt := 0; attempt < issueKeyAttempts; attempt++ {
		key, err := license.GenerateKey()
		if err != nil {
			return nil, err
		}
		candidate := &store.Record{
			LicenseKey:   key,
			Type:         req.Type,
			Status:       license.StatusPending,
			CompanyName:  req.CompanyName,
			ContactEmail: req.ContactEmail,
			Entitlements: store.EntitlementsColumn(license.DefaultEntitlements(req.Type)),
			IssuedAt:     now,
			ExpiresAt:    req.ExpiresAt,
		}
		err = s.store.Create(ctx, candidate)
		if err == nil {
			rec = candidate
			break
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "license key collision, regenerating",
			slog.Int("attempt", attempt+1))
	}
	if rec == nil {
		return nil, apperrors.ErrKeySpaceExhausted
	}

	s.audit(ctx, rec.LicenseKey, store.AuditActionIssued, RequestMeta{},
		fmt.Sprintf("type=%s company=%s", rec.Type, rec.CompanyName))
	if s.metrics != nil {
		s.metrics.LicensesIssued.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "license issued",
		slog.String("license_key", rec.LicenseKey),
		slog.String("type", string(rec.Type)))

	v := s.view(rec)
	return &v, nil
}

func (s *licenseService) Get(ctx context.Context, key string) (*LicenseView, error) {
	rec, err := s.getRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	v := s.view(rec)
	return &v, nil
}

func (s *licenseService) List(ctx context.Context, f store.Filter) ([]LicenseView, error) {
	recs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	views := make([]LicenseView, 0, len(recs))
	for i := range recs {
		views = append(views, s.view(&recs[i]))
	}
	return views, nil
}

// Activate binds a license to a hardware fingerprint. Precondition checks
// run in a fixed order (not found, revoked, expired) before the atomic
// bind; a failed bind is re-read and classified so concurrent losers get
// the precise error, not a generic conflict.
func (s *licenseService) Activate(ctx context.Context, req ActivateRequest) (*ActivationResult, error) {
	if s.metrics != nil {
		s.metrics.ActivationAttempts.Add(ctx, 1)
	}

	result, err := s.activate(ctx, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ActivationFailures.Add(ctx, 1)
		}
		s.audit(ctx, req.Key, store.AuditActionActivationFailed, req.Meta, err.Error())
	}
	return result, err
}

func (s *licenseService) activate(ctx context.Context, req ActivateRequest) (*ActivationResult, error) {
	if !license.ValidKeyFormat(req.Key) {
		return nil, apperrors.ErrInvalidKeyFormat
	}
	if !license.ValidFingerprint(req.Fingerprint) {
		return nil, apperrors.ErrInvalidFingerprint
	}

	rec, err := s.getRecord(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(rec); err != nil {
		return nil, err
	}

	reactivated := rec.HardwareFingerprint != nil && *rec.HardwareFingerprint == req.Fingerprint

	bound, err := s.store.BindFingerprint(ctx, req.Key, req.Fingerprint, s.now())
	if err != nil {
		return nil, err
	}
	if !bound {
		// Lost the bind: re-read to report why.
		rec, err = s.getRecord(ctx, req.Key)
		if err != nil {
			return nil, err
		}
		if err := s.checkUsable(rec); err != nil {
			return nil, err
		}
		if rec.HardwareFingerprint != nil && *rec.HardwareFingerprint != req.Fingerprint {
			return nil, apperrors.ErrFingerprintMismatch
		}
		return nil, fmt.Errorf("activation did not take effect for %s", req.Key)
	}

	rec, err = s.getRecord(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	action := store.AuditActionActivated
	detail := "fingerprint bound"
	if reactivated {
		detail = "re-activation on bound hardware"
	}
	s.audit(ctx, req.Key, action, req.Meta, detail)
	s.logger.InfoContext(ctx, "license activated",
		slog.String("license_key", req.Key),
		slog.Bool("reactivated", reactivated))

	return &ActivationResult{License: s.view(rec), Reactivated: reactivated}, nil
}

// checkUsable rejects records that can never activate: revoked first (an
// explicit administrative act outranks the calendar for messaging on
// not-yet-expired licenses), then computed expiry.
func (s *licenseService) checkUsable(rec *store.Record) error {
	if rec.Status == license.StatusRevoked {
		return apperrors.ErrLicenseRevoked
	}
	if rec.EffectiveStatus(s.now()) == license.StatusExpired {
		return apperrors.ErrLicenseExpired
	}
	return nil
}

func (s *licenseService) Revoke(ctx context.Context, key string) error {
	err := s.store.Revoke(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.ErrLicenseNotFound
	}
	if err != nil {
		return err
	}
	s.audit(ctx, key, store.AuditActionRevoked, RequestMeta{}, "")
	s.logger.InfoContext(ctx, "license revoked", slog.String("license_key", key))
	return nil
}

// Transfer releases the hardware binding so the license can activate on a
// new device. Revoked licenses stay revoked; transfer does not resurrect.
func (s *licenseService) Transfer(ctx context.Context, key string) error {
	rec, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}
	if rec.Status == license.StatusRevoked {
		return apperrors.ErrLicenseRevoked
	}
	if err := s.store.ClearFingerprint(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrLicenseNotFound
		}
		return err
	}
	s.audit(ctx, key, store.AuditActionTransferred, RequestMeta{}, "fingerprint cleared")
	s.logger.InfoContext(ctx, "license released for transfer", slog.String("license_key", key))
	return nil
}

// GenerateOfflineFile derives a signed offline file binding the license to
// the given fingerprint. A license already bound to other hardware cannot
// be exported for a different device.
func (s *licenseService) GenerateOfflineFile(ctx context.Context, key, fingerprint string) (*OfflineFile, error) {
	if !license.ValidFingerprint(fingerprint) {
		return nil, apperrors.ErrInvalidFingerprint
	}
	rec, err := s.getRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.checkUsable(rec); err != nil {
		return nil, err
	}
	if rec.HardwareFingerprint != nil && *rec.HardwareFingerprint != fingerprint {
		return nil, apperrors.ErrFingerprintMismatch
	}

	payload := license.OfflinePayload{
		LicenseKey:          rec.LicenseKey,
		Type:                rec.Type,
		CompanyName:         rec.CompanyName,
		Entitlements:        license.Entitlements(rec.Entitlements),
		IssuedAt:            rec.IssuedAt,
		ExpiresAt:           rec.ExpiresAt,
		HardwareFingerprint: fingerprint,
		GeneratedAt:         s.now(),
	}
	content, err := license.EncodeOfflineFile(s.signer, payload)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, key, store.AuditActionOfflineGenerated, RequestMeta{},
		fmt.Sprintf("fingerprint=%s", fingerprint))
	if s.metrics != nil {
		s.metrics.OfflineFilesGenerated.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "offline license file generated",
		slog.String("license_key", key))

	return &OfflineFile{
		Content:  content,
		Filename: license.OfflineFileName(rec.LicenseKey),
	}, nil
}

// ValidateOfflineFile checks a presented offline file. Invalid files are a
// normal outcome, reported in the result, never as an error.
func (s *licenseService) ValidateOfflineFile(ctx context.Context, content, fingerprint string, meta RequestMeta) license.FileValidation {
	result := license.ValidateOfflineFile(s.signer, content, fingerprint, s.now())

	key := ""
	if result.Payload != nil {
		key = result.Payload.LicenseKey
	}
	detail := "valid"
	if !result.Valid {
		detail = result.Code
	}
	if key != "" {
		s.audit(ctx, key, store.AuditActionOfflineValidated, meta, detail)
	}
	s.logger.InfoContext(ctx, "offline license file validated",
		slog.Bool("valid", result.Valid),
		slog.String("code", result.Code))

	return result
}

// Heartbeat records a liveness check-in from an activated installation and
// returns the current effective status.
func (s *licenseService) Heartbeat(ctx context.Context, key, fingerprint string, meta RequestMeta) (*HeartbeatResult, error) {
	rec, err := s.getRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.HardwareFingerprint == nil {
		return nil, apperrors.ErrLicenseNotActivated
	}
	if *rec.HardwareFingerprint != fingerprint {
		return nil, apperrors.ErrFingerprintMismatch
	}

	s.audit(ctx, key, store.AuditActionHeartbeat, meta, "")
	if s.metrics != nil {
		s.metrics.Heartbeats.Add(ctx, 1)
	}

	return &HeartbeatResult{
		Status:    rec.EffectiveStatus(s.now()),
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *licenseService) Statistics(ctx context.Context) (*store.Statistics, error) {
	return s.store.Statistics(ctx, s.now())
}

func (s *licenseService) Audit(ctx context.Context, key string, limit int) ([]store.AuditEntry, error) {
	if _, err := s.getRecord(ctx, key); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, key, limit)
}

// SweepExpired logs and audits licenses that crossed their expiry since
// the last sweep. Status is never rewritten; expired stays a computed
// value, the sweep only makes the crossing observable.
func (s *licenseService) SweepExpired(ctx context.Context) (int, error) {
	recs, err := s.store.ListNewlyExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range recs {
		seen, err := s.store.HasAudit(ctx, recs[i].LicenseKey, store.AuditActionExpired)
		if err != nil {
			return swept, err
		}
		if seen {
			continue
		}
		s.audit(ctx, recs[i].LicenseKey, store.AuditActionExpired, RequestMeta{},
			fmt.Sprintf("expired_at=%s", recs[i].ExpiresAt.Format(time.RFC3339)))
		s.logger.InfoContext(ctx, "license crossed expiry",
			slog.String("license_key", recs[i].LicenseKey))
		swept++
	}
	return swept, nil
}

func (s *licenseService) getRecord(ctx context.Context, key string) (*store.Record, error) {
	rec, err := s.store.GetByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// audit appends to the trail; failures are logged, never propagated.
func (s *licenseService) audit(ctx context.Context, key, action string, meta RequestMeta, detail string) {
	entry := &store.AuditEntry{
		LicenseKey: key,
		Action:     action,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Detail:     detail,
	}
	if err := s.store.RecordAudit(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to record audit entry",
			slog.String("license_key", key),
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}
