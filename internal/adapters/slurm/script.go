package slurm

import (
	"fmt"
	"strings"

	"github.com/target/hpcjobs/internal/domain/model"
)

// ScriptFileName is the name of the rendered batch script inside a job's working directory.
const ScriptFileName = "job.sh"

// FormatWalltime renders seconds as HH:MM:SS; hours are not capped at 24.
func FormatWalltime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// RenderScript builds the sbatch script for job. It has no side effects.
// WorkingDirectory must already be assigned.
func RenderScript(job *model.Job) string {
	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	add("#!/bin/bash", "")
	add(directives(job)...)
	add("")

	add("# Environment Setup")
	add(environmentLines(job.Environment)...)
	add("")

	if pre := optional(job.PreScript); pre != "" {
		add("# Pre-job commands", pre, "")
	}

	add("cd "+job.WorkingDirectory, "")

	add("# Main job command", mainCommand(job), "")

	if post := optional(job.PostScript); post != "" {
		add("# Post-job commands", post, "")
	}

	return strings.Join(lines, "\n")
}

func directives(job *model.Job) []string {
	d := []string{
		"#SBATCH --job-name=" + job.Name,
		"#SBATCH --partition=" + job.Queue,
		fmt.Sprintf("#SBATCH --nodes=%d", job.Nodes),
		fmt.Sprintf("#SBATCH --ntasks=%d", job.TasksPerNode),
		fmt.Sprintf("#SBATCH --cpus-per-task=%d", job.CPUsPerTask),
		fmt.Sprintf("#SBATCH --mem=%dG", job.MemoryPerNodeGB),
	}
	if job.GPUsPerNode > 0 {
		d = append(d, fmt.Sprintf("#SBATCH --gres=gpu:%d", job.GPUsPerNode))
	}
	d = append(d,
		"#SBATCH --time="+FormatWalltime(job.WalltimeSeconds),
		"#SBATCH --output="+job.WorkingDirectory+"/slurm-%j.out",
		"#SBATCH --error="+job.WorkingDirectory+"/slurm-%j.err",
	)
	if job.Priority != 0 {
		d = append(d, fmt.Sprintf("#SBATCH --priority=%d", job.Priority))
	}
	return d
}

func environmentLines(env model.Environment) []string {
	switch env.Kind {
	case model.EnvironmentModules:
		out := []string{"module purge"}
		if env.Modules != nil {
			for _, m := range env.Modules.Modules {
				out = append(out, "module load "+m)
			}
		}
		return out
	case model.EnvironmentConda:
		name := ""
		if env.Conda != nil {
			name = env.Conda.EnvName
		}
		return []string{
			"source $(conda info --base)/etc/profile.d/conda.sh",
			"conda activate " + name,
		}
	case model.EnvironmentContainer:
		if env.Container == nil {
			return nil
		}
		out := []string{"export SINGULARITY_IMAGE=" + env.Container.Image}
		if env.Container.BindPaths != "" {
			out = append(out, `export SINGULARITY_BINDPATH="`+env.Container.BindPaths+`"`)
		}
		return out
	case model.EnvironmentRaw:
		if env.Raw == nil || env.Raw.Commands == "" {
			return nil
		}
		return []string{env.Raw.Commands}
	default:
		return nil
	}
}

func mainCommand(job *model.Job) string {
	cmd := job.Command
	if args := optional(job.Arguments); args != "" {
		cmd += " " + args
	}
	if job.Environment.Kind == model.EnvironmentContainer {
		cmd = "singularity exec $SINGULARITY_IMAGE " + cmd
	}
	return cmd
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
