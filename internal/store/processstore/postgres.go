// internal/store/processstore/postgres.go
package processstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rental-process/internal/catalog"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/observability"
	"rental-process/internal/models"
)

const selectProcess = `
	SELECT id, current_step, applicant_info, selected_profile, selected_security,
	       security_fields, accepted_deposit, uploaded_docs, tenant_id, unit_id,
	       status, created_at, updated_at
	FROM rental_processes
	WHERE id = $1`

// PostgresStore keeps each payload section in its own column so updates merge per section.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.ForComponent(log, "processstore"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, "processstore."+name,
		trace.WithAttributes(attribute.String("process.id", id)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *PostgresStore) Create(ctx context.Context, payload models.Payload, step models.Step, tenantID, unitID string) (id string, err error) {
	id = uuid.New().String()
	ctx, span := startSpan(ctx, "Create", id)
	defer func() { endSpan(span, err) }()

	if !step.Valid() {
		step = models.StepProfileSelect
	}

	applicantInfo, securityFields, uploadedDocs, err := marshalSections(payload.ApplicantInfo, payload.SecurityFields, payload.UploadedDocs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessWriteFailed, err)
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rental_processes (
			id, current_step, applicant_info, selected_profile, selected_security,
			security_fields, accepted_deposit, uploaded_docs, tenant_id, unit_id,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $12)`,
		id,
		int(step),
		applicantInfo,
		string(payload.SelectedProfile),
		string(payload.SelectedSecurity),
		securityFields,
		payload.AcceptedDeposit,
		uploadedDocs,
		tenantID,
		unitID,
		string(models.StatusDraft),
		now,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert failed: %v", ErrProcessWriteFailed, err)
	}

	s.audit(ctx, "process_created", id, map[string]interface{}{
		"step":     int(step),
		"tenantId": tenantID,
		"unitId":   unitID,
	})

	s.logger.Info("process created", map[string]interface{}{
		"processId": id,
		"step":      int(step),
	})
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch models.Patch, step models.Step, tenantID, unitID string) (err error) {
	ctx, span := startSpan(ctx, "Update", id)
	defer func() { endSpan(span, err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	query, args, err := buildUpdate(id, patch, step, tenantID, unitID, s.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessWriteFailed, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: update failed: %v", ErrProcessWriteFailed, err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	return nil
}

// buildUpdate renders the SET list for the sections the patch names.
// Map sections are merged with jsonb concatenation.
func buildUpdate(id string, patch models.Patch, step models.Step, tenantID, unitID string, now time.Time) (string, []interface{}, error) {
	sets := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)
	add := func(expr string, arg interface{}) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if step.Valid() {
		add("current_step = $%d", int(step))
	}
	if len(patch.ApplicantInfo) > 0 {
		b, err := json.Marshal(patch.ApplicantInfo)
		if err != nil {
			return "", nil, err
		}
		add("applicant_info = applicant_info || $%d::jsonb", b)
	}
	if patch.SelectedProfile != nil {
		add("selected_profile = $%d", string(*patch.SelectedProfile))
	}
	if patch.SelectedSecurity != nil {
		add("selected_security = $%d", string(*patch.SelectedSecurity))
	}
	if len(patch.SecurityFields) > 0 {
		b, err := json.Marshal(patch.SecurityFields)
		if err != nil {
			return "", nil, err
		}
		add("security_fields = security_fields || $%d::jsonb", b)
	}
	if patch.AcceptedDeposit != nil {
		add("accepted_deposit = $%d", *patch.AcceptedDeposit)
	}
	if len(patch.UploadedDocs) > 0 {
		b, err := json.Marshal(patch.UploadedDocs)
		if err != nil {
			return "", nil, err
		}
		add("uploaded_docs = uploaded_docs || $%d::jsonb", b)
	}
	if tenantID != "" {
		add("tenant_id = $%d", tenantID)
	}
	if unitID != "" {
		add("unit_id = $%d", unitID)
	}
	add("updated_at = $%d", now)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE rental_processes SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (proc *models.Process, err error) {
	ctx, span := startSpan(ctx, "Get", id)
	defer func() { endSpan(span, err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	var (
		p                                           models.Process
		step                                        int
		applicantInfo, securityFields, uploadedDocs []byte
		profile, security, status                   string
		tenantID, unitID                            sql.NullString
	)
	err = s.db.QueryRowContext(ctx, selectProcess, id).Scan(
		&p.ID, &step, &applicantInfo, &profile, &security,
		&securityFields, &p.Payload.AcceptedDeposit, &uploadedDocs, &tenantID, &unitID,
		&status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrProcessReadFailed, err)
	}

	if err := unmarshalSection(applicantInfo, &p.Payload.ApplicantInfo); err != nil {
		return nil, fmt.Errorf("%w: applicant_info: %v", ErrProcessReadFailed, err)
	}
	if err := unmarshalSection(securityFields, &p.Payload.SecurityFields); err != nil {
		return nil, fmt.Errorf("%w: security_fields: %v", ErrProcessReadFailed, err)
	}
	if err := unmarshalSection(uploadedDocs, &p.Payload.UploadedDocs); err != nil {
		return nil, fmt.Errorf("%w: uploaded_docs: %v", ErrProcessReadFailed, err)
	}

	p.CurrentStep = models.Step(step)
	p.Payload.SelectedProfile = catalog.ProfileType(profile)
	p.Payload.SelectedSecurity = catalog.SecurityType(security)
	p.TenantID = tenantID.String
	p.UnitID = unitID.String
	p.Status = models.ProcessStatus(status)
	return &p, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status models.ProcessStatus) (err error) {
	ctx, span := startSpan(ctx, "SetStatus", id)
	defer func() { endSpan(span, err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE rental_processes SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), s.now(), id)
	if err != nil {
		return fmt.Errorf("%w: status update failed: %v", ErrProcessWriteFailed, err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}

	s.audit(ctx, "process_"+string(status), id, map[string]interface{}{"status": string(status)})
	return nil
}

// audit is non-critical: failures are logged, never returned.
func (s *PostgresStore) audit(ctx context.Context, event, id string, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.logger.Warn("failed to marshal audit log details", map[string]interface{}{"error": err})
		detailsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event, "rental_process", id, detailsJSON, s.now(),
	)
	if err != nil {
		s.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":     err,
			"processId": id,
		})
	}
}

func marshalSections(info, security map[string]string, docs map[string][]models.DocumentRef) ([]byte, []byte, []byte, error) {
	a, err := marshalOrEmpty(info)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := marshalOrEmpty(security)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := marshalOrEmpty(docs)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, b, c, nil
}

func marshalOrEmpty[T any](m map[string]T) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalSection(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
