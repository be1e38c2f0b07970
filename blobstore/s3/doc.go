// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "openvdb/"
//	    o.Region = "us-east-1"
//	})
//
// Uploads go through the SDK upload manager, so large snapshots are sent
// as multipart uploads. Listing follows continuation tokens.
package s3
