package document

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.owner_id, d.title, d.file_name, d.file_location, d.file_size,
			d.content_type, d.upload_timestamp,
			m.category, m.document_date, m.doctor_name, m.hospital_name, m.summary
		FROM documents d
		LEFT JOIN document_metadata m ON m.document_id = d.id
		WHERE d.owner_id = $1
		ORDER BY d.upload_timestamp DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var row Row
		var category, doctorName, hospitalName, summary *string
		var documentDate *time.Time
		err := rows.Scan(&row.Header.ID, &row.Header.OwnerID, &row.Header.Title,
			&row.Header.FileName, &row.Header.FileLocation, &row.Header.FileSize,
			&row.Header.ContentType, &row.Header.UploadTimestamp,
			&category, &documentDate, &doctorName, &hospitalName, &summary)
		if err != nil {
			return nil, err
		}
		if category != nil || documentDate != nil || doctorName != nil || hospitalName != nil || summary != nil {
			row.Metadata = MetadataRecord{
				Present: true,
				Metadata: Metadata{
					Category:     strVal(category),
					DocumentDate: documentDate,
					DoctorName:   strVal(doctorName),
					HospitalName: strVal(hospitalName),
					Summary:      strVal(summary),
				},
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *repoPG) GetHeader(ctx context.Context, id uuid.UUID) (*Header, error) {
	var h Header
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, file_name, file_location, file_size, content_type, upload_timestamp
		FROM documents WHERE id = $1`, id).
		Scan(&h.ID, &h.OwnerID, &h.Title, &h.FileName, &h.FileLocation, &h.FileSize, &h.ContentType, &h.UploadTimestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *repoPG) CreateHeader(ctx context.Context, h *Header) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, owner_id, title, file_name, file_location, file_size, content_type, upload_timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.OwnerID, h.Title, h.FileName, h.FileLocation, h.FileSize, h.ContentType, h.UploadTimestamp)
	return err
}

func (r *repoPG) CreateMetadata(ctx context.Context, documentID uuid.UUID, m Metadata) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO document_metadata (document_id, category, document_date, doctor_name, hospital_name, summary)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		documentID, nullStr(m.Category), m.DocumentDate, nullStr(m.DoctorName), nullStr(m.HospitalName), nullStr(m.Summary))
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
