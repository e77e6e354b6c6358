package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the sample imaging schema. Foreign keys carry no
// ON DELETE actions; the delete plan is responsible for ordering.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS project (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    owner_id   BIGINT,
    group_id   BIGINT,
    created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    owner_id   BIGINT,
    group_id   BIGINT,
    created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS project_dataset_link (
    id     BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    parent BIGINT NOT NULL REFERENCES project(id),
    child  BIGINT NOT NULL REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS fileset (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fileset_entry (
    id      BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    fileset BIGINT NOT NULL REFERENCES fileset(id),
    name    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS image (
    id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    fileset    BIGINT REFERENCES fileset(id),
    owner_id   BIGINT,
    group_id   BIGINT,
    created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset_image_link (
    id     BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    parent BIGINT NOT NULL REFERENCES dataset(id),
    child  BIGINT NOT NULL REFERENCES image(id)
);

CREATE TABLE IF NOT EXISTS pixels (
    id    BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    image BIGINT NOT NULL REFERENCES image(id)
);

CREATE TABLE IF NOT EXISTS annotation (
    id   BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS image_annotation_link (
    id     BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    parent BIGINT NOT NULL REFERENCES image(id),
    child  BIGINT NOT NULL REFERENCES annotation(id)
);

CREATE INDEX IF NOT EXISTS idx_project_owner ON project (owner_id);
CREATE INDEX IF NOT EXISTS idx_dataset_owner ON dataset (owner_id);
CREATE INDEX IF NOT EXISTS idx_pdl_parent ON project_dataset_link (parent);
CREATE INDEX IF NOT EXISTS idx_pdl_child ON project_dataset_link (child);
CREATE INDEX IF NOT EXISTS idx_fileset_entry_fileset ON fileset_entry (fileset);
CREATE INDEX IF NOT EXISTS idx_image_fileset ON image (fileset);
CREATE INDEX IF NOT EXISTS idx_image_owner ON image (owner_id);
CREATE INDEX IF NOT EXISTS idx_image_group ON image (group_id);
CREATE INDEX IF NOT EXISTS idx_image_created ON image (created_at);
CREATE INDEX IF NOT EXISTS idx_dil_parent ON dataset_image_link (parent);
CREATE INDEX IF NOT EXISTS idx_dil_child ON dataset_image_link (child);
CREATE INDEX IF NOT EXISTS idx_pixels_image ON pixels (image);
CREATE INDEX IF NOT EXISTS idx_ial_parent ON image_annotation_link (parent);
CREATE INDEX IF NOT EXISTS idx_ial_child ON image_annotation_link (child);
`
	_, err := c.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
