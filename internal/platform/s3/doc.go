// Package s3 stores binary generation results in an S3 bucket (or any
// S3-compatible service such as MinIO) and hands back the URL that task
// snapshots carry as their stream reference.
package s3
