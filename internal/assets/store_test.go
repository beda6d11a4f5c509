package assets

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreSaveAssetAssignsID(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.SaveAsset(context.Background(), Asset{JobID: "job-1", Kind: "image", URL: "https://cdn.example/img.png"})
	if err != nil {
		t.Fatalf("SaveAsset() error = %v", err)
	}
	if id == "" {
		t.Fatal("SaveAsset() returned empty id")
	}
	saved := s.assets[id]
	if saved.JobID != "job-1" || saved.CreatedAt.IsZero() {
		t.Errorf("saved asset = %+v", saved)
	}
}

func TestMemoryStoreDuplicateAsset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.SaveAsset(ctx, Asset{ID: "asset-1", JobID: "job-1", Kind: "image"}); err != nil {
		t.Fatalf("first SaveAsset() error = %v", err)
	}
	_, err := s.SaveAsset(ctx, Asset{ID: "asset-1", JobID: "job-2", Kind: "image"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("second SaveAsset() error = %v, want ErrDuplicateID", err)
	}
}

func TestMemoryStoreSaveModel(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.SaveModel(context.Background(), Model{JobID: "job-1", Name: "fox-style", BaseModel: "sdxl", Handle: "lora://fox"})
	if err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}
	if s.models[id].Handle != "lora://fox" {
		t.Errorf("saved model = %+v", s.models[id])
	}

	if _, err := s.SaveModel(context.Background(), Model{ID: id}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate SaveModel() error = %v, want ErrDuplicateID", err)
	}
}
