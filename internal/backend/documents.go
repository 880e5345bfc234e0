package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/models"
)

// UploadDocument sends one multipart document upload. Tenant and owner ids
// travel only when set, as lease-contract uploads require.
func (c *Client) UploadDocument(ctx context.Context, upload models.DocumentUpload) error {
	body, contentType, err := encodeUpload(upload, true)
	if err != nil {
		return apperrors.Normalize(err)
	}
	if _, err := c.do(ctx, http.MethodPost, "/documents", body, contentType); err != nil {
		return asMutationError("upload-document", err)
	}
	return nil
}

// ReplaceDocument re-uploads the file for an existing document, bumping its
// version on the backend. Same multipart shape scoped to the document id.
func (c *Client) ReplaceDocument(ctx context.Context, upload models.DocumentUpload) error {
	if upload.ReplacesID == "" {
		return apperrors.NewMutationFailedError("replace-document", 400, "missing document id to replace")
	}
	body, contentType, err := encodeUpload(upload, false)
	if err != nil {
		return apperrors.Normalize(err)
	}
	route := fmt.Sprintf("/documents/%s", upload.ReplacesID)
	if _, err := c.do(ctx, http.MethodPut, route, body, contentType); err != nil {
		return asMutationError("replace-document", err)
	}
	return nil
}

// DeleteDocument removes one document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	route := fmt.Sprintf("/documents/%s", id)
	if _, err := c.do(ctx, http.MethodDelete, route, nil, ""); err != nil {
		return asMutationError("delete-document", err)
	}
	return nil
}

// DownloadDocument fetches the stored file bytes.
func (c *Client) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	route := fmt.Sprintf("/documents/%s/download", id)
	raw, err := c.do(ctx, http.MethodGet, route, nil, "")
	if err != nil {
		return nil, asMutationError("download-document", err)
	}
	return raw, nil
}

func encodeUpload(upload models.DocumentUpload, withEntity bool) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if withEntity {
		entityType := upload.EntityType
		if entityType == "" {
			entityType = "propiedad"
		}
		if err := w.WriteField("entidad_tipo", entityType); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("entidad_id", upload.EntityID); err != nil {
			return nil, "", err
		}
	}
	if upload.Category != "" {
		if err := w.WriteField("categoria", upload.Category); err != nil {
			return nil, "", err
		}
	}
	if upload.TenantID != "" {
		if err := w.WriteField("arrendatario_id", upload.TenantID); err != nil {
			return nil, "", err
		}
	}
	if upload.OwnerID != "" {
		if err := w.WriteField("propietario_id", upload.OwnerID); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
