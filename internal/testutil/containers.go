// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// MinIOUser and MinIOPassword are the root credentials of StartMinIO containers.
	MinIOUser     = "minioadmin"
	MinIOPassword = "minioadmin"
)

// isPodman checks if the current container engine is Podman, either through
// DOCKER_HOST or through the output of "docker info" (Podman's docker-compat
// layer mentions itself there).
func isPodman() bool {
	if strings.Contains(os.Getenv("DOCKER_HOST"), "podman") {
		return true
	}

	output, err := exec.Command("docker", "info").CombinedOutput()
	return err == nil && strings.Contains(strings.ToLower(string(output)), "podman")
}

// DetectContainerProvider returns the testcontainers provider matching the local
// container engine. Docker is the default.
func DetectContainerProvider() testcontainers.ProviderType {
	if isPodman() {
		return testcontainers.ProviderPodman
	}
	return testcontainers.ProviderDocker
}

// ConfigureRyuk disables the Ryuk reaper under Podman, where it usually lacks
// permissions. An explicit TESTCONTAINERS_RYUK_DISABLED is left alone.
// Returns true if Ryuk was disabled.
func ConfigureRyuk() bool {
	if isPodman() && os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
		return true
	}
	return false
}

// StartContainer starts req for the duration of the test and returns the host:port
// of its first exposed port. The test is skipped under -short.
func StartContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ConfigureRyuk()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		ProviderType:     DetectContainerProvider(),
	})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate %s: %v", req.Image, err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get endpoint of %s: %v", req.Image, err)
	}
	return endpoint
}

// StartMinIO starts a MinIO server and returns its endpoint.
func StartMinIO(t *testing.T) string {
	t.Helper()
	return StartContainer(t, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     MinIOUser,
			"MINIO_ROOT_PASSWORD": MinIOPassword,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000").WithStartupTimeout(60 * time.Second),
	})
}

// StartFakeGCS starts fake-gcs-server over plain HTTP and returns its endpoint,
// suitable for STORAGE_EMULATOR_HOST.
func StartFakeGCS(t *testing.T) string {
	t.Helper()
	return StartContainer(t, testcontainers.ContainerRequest{
		Image:        "fsouza/fake-gcs-server:latest",
		ExposedPorts: []string{"4443/tcp"},
		Cmd:          []string{"-scheme", "http", "-port", "4443"},
		WaitingFor:   wait.ForListeningPort("4443/tcp").WithStartupTimeout(60 * time.Second),
	})
}
