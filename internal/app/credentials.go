package app

import (
	"errors"
	"fmt"

	"helix/internal/archive"
	"helix/internal/fieldmask"
	"helix/internal/vault"
)

// Archive keys holding credentials. Secrets are stored Field-Masked.
const (
	KeyS3AccessKeyID     = "s3_access_key_id"
	KeyS3SecretAccessKey = "s3_secret_access_key"
	KeySQLUser           = "sql_user"
	KeySQLPassword       = "sql_password"
	KeySQLHost           = "sql_host"
	KeySQLDatabase       = "sql_database"
)

// MaskedKeys lists the archive keys whose values are Field-Masked.
var MaskedKeys = map[string]bool{
	KeyS3SecretAccessKey: true,
	KeySQLPassword:       true,
}

// ErrInvalidConnectionDetails indicates a credential key is missing from the
// archive or does not hold a string.
var ErrInvalidConnectionDetails = errors.New("invalid connection details in archive")

// ConnectionDetails are the SQL server credentials stored in the archive.
type ConnectionDetails struct {
	User     string
	Password string
	Host     string
	Database string
}

// URL renders the details as a connection URL. Components are not escaped.
func (c ConnectionDetails) URL() string {
	return fmt.Sprintf("mysql://%s:%s@%s/%s", c.User, c.Password, c.Host, c.Database)
}

// ReadConnectionDetails reads the SQL credentials and unmasks the password.
func ReadConnectionDetails(a *archive.Archive) (ConnectionDetails, error) {
	var c ConnectionDetails
	var err error

	if c.User, err = requireString(a, KeySQLUser); err != nil {
		return ConnectionDetails{}, err
	}
	if c.Password, err = requireString(a, KeySQLPassword); err != nil {
		return ConnectionDetails{}, err
	}
	if c.Host, err = requireString(a, KeySQLHost); err != nil {
		return ConnectionDetails{}, err
	}
	if c.Database, err = requireString(a, KeySQLDatabase); err != nil {
		return ConnectionDetails{}, err
	}

	c.Password = fieldmask.Decrypt(c.Password)
	return c, nil
}

// ReadS3Credentials reads the S3 access keys and unmasks the secret.
func ReadS3Credentials(a *archive.Archive) (vault.S3Credentials, error) {
	id, err := requireString(a, KeyS3AccessKeyID)
	if err != nil {
		return vault.S3Credentials{}, err
	}
	secret, err := requireString(a, KeyS3SecretAccessKey)
	if err != nil {
		return vault.S3Credentials{}, err
	}
	return vault.S3Credentials{
		AccessKeyID:     id,
		SecretAccessKey: fieldmask.Decrypt(secret),
	}, nil
}

func requireString(a *archive.Archive, key string) (string, error) {
	v, ok := a.GetString(key)
	if !ok {
		return "", fmt.Errorf("%w: %q missing or not a string", ErrInvalidConnectionDetails, key)
	}
	return v, nil
}
