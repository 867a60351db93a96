package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"formflow/internal/models"
)

// SubmissionIndex writes persisted submissions to an Elasticsearch index for search.
type SubmissionIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewSubmissionIndex(client *elasticsearch.Client, index string) *SubmissionIndex {
	return &SubmissionIndex{client: client, index: index}
}

type submissionDocument struct {
	SubmissionID string                    `json:"submissionId"`
	FormID       string                    `json:"formId"`
	Data         models.ValidatedResponse  `json:"data"`
	Files        []models.StorageReference `json:"files"`
	FileCount    int                       `json:"fileCount"`
	CreatedAt    string                    `json:"createdAt"`
}

// IndexSubmission upserts the document keyed by submission id.
func (s *SubmissionIndex) IndexSubmission(ctx context.Context, sub *models.Submission) error {
	doc := submissionDocument{
		SubmissionID: sub.ID,
		FormID:       sub.FormID,
		Data:         sub.Data,
		Files:        sub.Files,
		FileCount:    len(sub.Files),
		CreatedAt:    sub.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode submission document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: sub.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index submission: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("index submission: %s: %s", res.Status(), msg)
	}
	return nil
}
