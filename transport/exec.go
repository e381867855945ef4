package transport

import (
	"io"
	"os/exec"

	"github.com/pkg/errors"
)

// process joins the stdout and stdin pipes of a helper into one stream.
type process struct {
	cmd *exec.Cmd
	io.Reader
	io.WriteCloser
}

func (p *process) Close() error {
	if err := p.WriteCloser.Close(); err != nil {
		logger.Debug("can't close helper stdin", "err", err)
	}
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			logger.Debug("can't kill helper", "pid", p.cmd.Process.Pid, "err", err)
		}
	}
	err := p.cmd.Wait()
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}

// Exec starts a helper process and returns a stream attached to its stdout
// and stdin. Closing the stream kills the process.
func Exec(path string, args ...string) (io.ReadWriteCloser, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "can't attach to %s stdin", path)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "can't attach to %s stdout", path)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "can't start %s", path)
	}
	logger.Info("helper started", "path", path, "pid", cmd.Process.Pid)
	return &process{cmd: cmd, Reader: stdout, WriteCloser: stdin}, nil
}
