//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Grobid groups the GROBID container targets.
type Grobid mg.Namespace

// Pull fetches the pinned GROBID image.
func (Grobid) Pull() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "grobid", "pull")
}

// Up starts GROBID detached and waits for it to answer.
func (Grobid) Up() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "grobid", "start")
}

// Down stops the detached GROBID container.
func (Grobid) Down() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "grobid", "stop")
}

// Extract runs content extraction over PDF/ with GROBID.
func Extract() error {
	mg.Deps(Build, Grobid.Up)
	return sh.RunV(binPath, "extract")
}

// Workflows extracts workflows for the papers under PDF/.
func Workflows() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "workflows")
}

// Analyze analyzes the workflows written by the Workflows target.
func Analyze() error {
	mg.Deps(Workflows)
	return sh.RunV(binPath, "analyze",
		"--workflows-json", "openai_outputs/metabolomics_complete_workflows.json")
}
