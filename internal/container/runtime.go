// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and the GROBID
// container lifecycle: pulling the pinned image and running it with an init
// process, core dumps disabled, and the service port published.
package container

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

const (
	// DefaultImage is the pinned GROBID image.
	DefaultImage = "grobid/grobid:0.8.0"
	// DefaultName is the container name used for detached runs.
	DefaultName = "grobid"
	// GrobidPort is the port GROBID listens on inside the container.
	GrobidPort = 8070
)

// RunSpec describes how to run the GROBID container.
type RunSpec struct {
	Image         string
	Name          string // only used by Start
	HostPort      int
	ContainerPort int
}

// DefaultRunSpec returns the RunSpec for grobid/grobid:0.8.0 on 8070:8070.
func DefaultRunSpec() RunSpec {
	return RunSpec{
		Image:         DefaultImage,
		Name:          DefaultName,
		HostPort:      GrobidPort,
		ContainerPort: GrobidPort,
	}
}

// withDefaults fills zero fields from DefaultRunSpec.
func (s RunSpec) withDefaults() RunSpec {
	d := DefaultRunSpec()
	if s.Image == "" {
		s.Image = d.Image
	}
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.HostPort == 0 {
		s.HostPort = d.HostPort
	}
	if s.ContainerPort == 0 {
		s.ContainerPort = d.ContainerPort
	}
	return s
}

// runArgs returns the "run" arguments shared by foreground and detached
// runs: ephemeral, init as PID 1, no core dumps, port published.
func (s RunSpec) runArgs(detached bool) []string {
	args := []string{"run", "--rm", "--init", "--ulimit", "core=0"}
	if detached {
		args = append(args, "-d", "--name", s.Name)
	}
	args = append(args, "-p", strconv.Itoa(s.HostPort)+":"+strconv.Itoa(s.ContainerPort), s.Image)
	return args
}

// Runtime provides container operations: checking availability, fetching
// images, and running or stopping containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Pull fetches an image, streaming progress to stdout.
	Pull(image string, stdout io.Writer) error

	// Run executes the container in the foreground until it exits.
	Run(spec RunSpec, stdout, stderr io.Writer) error

	// Start runs the container detached and returns its ID.
	Start(spec RunSpec) (string, error)

	// Stop stops a running container by name.
	Stop(name string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunPiped(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) RunPiped(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Pull(image string, stdout io.Writer) error {
	if err := r.exec.RunPiped(r.bin, []string{"pull", image}, nil, stdout, stdout); err != nil {
		return fmt.Errorf("pulling %s with %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(spec RunSpec, stdout, stderr io.Writer) error {
	spec = spec.withDefaults()
	if err := r.exec.RunPiped(r.bin, spec.runArgs(false), nil, stdout, stderr); err != nil {
		return fmt.Errorf("running %s container %s: %w", r.bin, spec.Image, err)
	}
	return nil
}

func (r *runtime) Start(spec RunSpec) (string, error) {
	spec = spec.withDefaults()
	var out, errOut bytes.Buffer
	if err := r.exec.RunPiped(r.bin, spec.runArgs(true), nil, &out, &errOut); err != nil {
		if msg := strings.TrimSpace(errOut.String()); msg != "" {
			return "", fmt.Errorf("starting %s container %s: %w: %s", r.bin, spec.Image, err, msg)
		}
		return "", fmt.Errorf("starting %s container %s: %w", r.bin, spec.Image, err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (r *runtime) Stop(name string) error {
	if name == "" {
		name = DefaultName
	}
	if err := r.exec.RunSilent(r.bin, "stop", name); err != nil {
		return fmt.Errorf("stopping %s container %s: %w", r.bin, name, err)
	}
	return nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
