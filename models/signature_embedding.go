package models

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeloualonzo/amsuip-sub000/helper"
)

// SignatureEmbedding is one unit-norm vector derived from a sample image or
// from a synthetic augmentation of one (ImageId is null for those).
// Immutable once created.
type SignatureEmbedding struct {
	Id        string         `gorm:"type:char(36);primaryKey" json:"id"`
	StudentId int64          `gorm:"index" json:"student_id"`
	ImageId   *string        `gorm:"type:char(36)" json:"image_id,omitempty"`
	Vector    datatypes.JSON `gorm:"type:json" json:"-"`
	Values    []float64      `gorm:"-" json:"vector"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (SignatureEmbedding) TableName() string {
	return "signature_embeddings"
}

func (e *SignatureEmbedding) BeforeCreate(tx *gorm.DB) error {
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	return nil
}

// SetVector stores the vector both as the JSON column and the in-memory
// helper field.
func (e *SignatureEmbedding) SetVector(v []float64) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.Vector = raw
	e.Values = v
	return nil
}

// DecodeVector fills Values from the JSON column.
func (e *SignatureEmbedding) DecodeVector() error {
	return json.Unmarshal(e.Vector, &e.Values)
}

// Neighbor is one KNN result: a student and the cosine distance of one of
// their stored embeddings to the query vector.
type Neighbor struct {
	StudentId int64
	Distance  float64
}

// SearchNearestEmbeddings returns up to k {student, distance} pairs across
// all students, ordered by ascending cosine distance to the query vector.
// Rows whose stored JSON does not decode are skipped.
func SearchNearestEmbeddings(db *gorm.DB, query []float64, k int) ([]Neighbor, error) {
	var rows []SignatureEmbedding
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, 0, len(rows))
	for i := range rows {
		if err := rows[i].DecodeVector(); err != nil {
			continue
		}
		dist, err := helper.CosineDistance(query, rows[i].Values)
		if err != nil {
			continue
		}
		neighbors = append(neighbors, Neighbor{StudentId: rows[i].StudentId, Distance: dist})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}
