package service

import (
	"github.com/samber/lo"
)

// prepared is one staged mutation and the error that staging it produced.
type prepared struct {
	commit func()
	err    error
}

// unitOfWork collects staged mutations across services. Nothing is written
// unless every mutation staged cleanly.
type unitOfWork struct {
	steps []prepared
}

func (u *unitOfWork) prepare(err error, commit func()) {
	u.steps = append(u.steps, prepared{commit: commit, err: err})
}

// commit applies every staged mutation, or none and returns the first
// staging error.
func (u *unitOfWork) commit() error {
	if failed, ok := lo.Find(u.steps, func(p prepared) bool { return p.err != nil }); ok {
		return failed.err
	}
	for _, p := range u.steps {
		p.commit()
	}
	return nil
}
