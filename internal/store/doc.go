// Package store persists downloaded results in a gocloud bucket.
//
// The output location is either a local directory or a bucket URL
// (file://, mem://, s3://, gs://). Each result is one object named after
// its job. Writes are all-or-nothing: the object appears only when the
// whole response body has been copied, so an object that exists is always
// complete and can be skipped on the next run.
//
// # Usage
//
//	st, err := store.Open(ctx, "./data")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	if ok, _ := st.Exists(ctx, name); !ok {
//	    n, err := st.Store(ctx, name, body)
//	}
package store
