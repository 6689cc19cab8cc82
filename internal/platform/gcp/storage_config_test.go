package gcp

import (
	"errors"
	"testing"
)

func TestResolveStorageConfigFromEnvDefaultGCS(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("ARTIFACT_GCS_BUCKET_NAME", "artifacts")
	t.Setenv("CONTENT_GCS_BUCKET_NAME", "")

	cfg, err := ResolveStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveStorageConfigFromEnv: %v", err)
	}
	if cfg.Mode != StorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", StorageModeGCS, cfg.Mode)
	}
	if cfg.ContentBucket != "artifacts" {
		t.Fatalf("content bucket: want=%q got=%q", "artifacts", cfg.ContentBucket)
	}
}

func TestResolveStorageConfigFromEnvInfersEmulator(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443/")
	t.Setenv("ARTIFACT_GCS_BUCKET_NAME", "artifacts")
	t.Setenv("CONTENT_GCS_BUCKET_NAME", "lessons")

	cfg, err := ResolveStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveStorageConfigFromEnv: %v", err)
	}
	if cfg.Mode != StorageModeGCSEmulator || !cfg.ModeInferred {
		t.Fatalf("want inferred emulator mode, got mode=%q inferred=%v", cfg.Mode, cfg.ModeInferred)
	}
	if cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host: got=%q", cfg.EmulatorHost)
	}
}

func TestResolveStorageConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		host     string
		bucket   string
		wantCode StorageConfigErrorCode
	}{
		{"invalid mode", "s3", "", "artifacts", StorageConfigErrorInvalidMode},
		{"missing bucket", "gcs", "", "", StorageConfigErrorMissingBucket},
		{"emulator without host", "gcs_emulator", "", "artifacts", StorageConfigErrorMissingEmulatorHost},
		{"emulator bad host", "gcs_emulator", "fake-gcs:4443", "artifacts", StorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OBJECT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.host)
			t.Setenv("ARTIFACT_GCS_BUCKET_NAME", tc.bucket)

			_, err := ResolveStorageConfigFromEnv()
			var cfgErr *StorageConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("want *StorageConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Code != tc.wantCode {
				t.Fatalf("code: want=%q got=%q", tc.wantCode, cfgErr.Code)
			}
		})
	}
}
