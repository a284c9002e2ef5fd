package config

// BackupConfig describes the optional S3 bucket that receives a copy of
// every snapshot written to disk.  An empty Bucket disables the mirror.
type BackupConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint, e.g. MinIO
	Prefix    string // object key prefix
	PathStyle bool
}

// LoadBackupConfig reads SNAPSHOT_S3_* environment variables.
func LoadBackupConfig() BackupConfig {
	return BackupConfig{
		Bucket:    envStr("SNAPSHOT_S3_BUCKET", ""),
		Region:    envStr("SNAPSHOT_S3_REGION", "us-east-1"),
		Endpoint:  envStr("SNAPSHOT_S3_ENDPOINT", ""),
		Prefix:    envStr("SNAPSHOT_S3_PREFIX", "catalog/"),
		PathStyle: envBool("SNAPSHOT_S3_PATH_STYLE", false),
	}
}

// Enabled reports whether a bucket is configured.
func (b BackupConfig) Enabled() bool { return b.Bucket != "" }
