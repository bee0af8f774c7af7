package compiler

import (
	"context"
	"time"
)

// ContainerEngine is the complete set of container engine operations the
// compiler uses. The control-plane proxy in front of the engine allows these
// and nothing else.
type ContainerEngine interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	// WaitContainer blocks until the container stops and returns its exit code
	WaitContainer(ctx context.Context, id string) (int64, error)
	// RemoveContainer force-removes a container. Removing a container that
	// no longer exists is not an error.
	RemoveContainer(ctx context.Context, id string) error
}

// ContainerLister is the extra permission the orphan sweeper needs on top
// of removal. The per-request compiler never lists containers.
type ContainerLister interface {
	ListContainers(ctx context.Context, labels map[string]string) ([]ContainerInfo, error)
	RemoveContainer(ctx context.Context, id string) error
}

// ContainerSpec describes one sandbox container
type ContainerSpec struct {
	Name       string
	Image      string
	User       string
	Cmd        []string
	WorkingDir string
	Labels     map[string]string
	Mounts     []Mount
	Limits     Limits
}

// Mount is a host directory bind-mounted into the container
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Limits caps the resources a sandbox container may use
type Limits struct {
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
	TmpfsBytes  int64
}

// ContainerInfo is the subset of container state the sweeper inspects
type ContainerInfo struct {
	ID      string
	Name    string
	State   string
	Labels  map[string]string
	Created time.Time
}

// Container labels set on every sandbox container
const (
	LabelManagedBy = "io.resume-renderer.managed-by"
	LabelJobID     = "io.resume-renderer.job-id"

	ManagedByValue = "resume-pdf-compiler"
)
