// Package flock provides exclusive file locks used when saving workbooks,
// so two workers never write the same artifact at once.
//
//	f, err := flock.Acquire(ctx, path+".lock", constants.LockTimeout)
//	if err != nil {
//	    return err
//	}
//	defer flock.Release(f)
package flock
