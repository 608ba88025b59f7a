package library

import "strings"

// Collection is a summary row for a vector store collection.
type Collection struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DocumentCount int    `json:"document_count"`
}

// CollectionConfig describes what a collection accepts and how it embeds.
type CollectionConfig struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	AllowedFileTypes       []string `json:"allowed_file_types,omitempty"`
	SecurityClassification string   `json:"security_classification,omitempty"`
	EmbeddingModel         string   `json:"embedding_model,omitempty"`
	ChunkSize              int      `json:"chunk_size,omitempty"`
	ChunkOverlap           int      `json:"chunk_overlap,omitempty"`
}

// classificationLevels orders the known markings from least to most restricted.
var classificationLevels = []string{
	"unclassified",
	"cui",
	"confidential",
	"secret",
	"top secret",
}

// ClassificationRank returns the position of a marking in the known ordering.
// Unknown markings report ok=false.
func ClassificationRank(c string) (rank int, ok bool) {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.ReplaceAll(c, "_", " ")
	c = strings.ReplaceAll(c, "-", " ")
	if c == "" {
		c = "unclassified"
	}
	for i, level := range classificationLevels {
		if c == level {
			return i, true
		}
	}
	return -1, false
}
