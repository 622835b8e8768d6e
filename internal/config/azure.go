package config

// AzureConfig holds Azure-specific configuration
type AzureConfig struct {
	ServiceBusConnectionString  string `yaml:"servicebus_connection_string"`
	QueueName                   string `yaml:"servicebus_queue_name"`
	BlobStorageConnectionString string `yaml:"blob_storage_connection_string"`
	BlobContainerName           string `yaml:"blob_container_name"`
}

// DefaultAzureConfig returns the built-in Azure defaults
func DefaultAzureConfig() AzureConfig {
	return AzureConfig{
		QueueName:         "scan-events",
		BlobContainerName: "recon",
	}
}

// LoadAzureConfig applies environment overrides to base
func LoadAzureConfig(base AzureConfig) AzureConfig {
	return AzureConfig{
		ServiceBusConnectionString:  getEnv("SERVICEBUS_CONNECTION_STRING", base.ServiceBusConnectionString),
		QueueName:                   getEnv("SERVICEBUS_QUEUE_NAME", base.QueueName),
		BlobStorageConnectionString: getEnv("BLOB_STORAGE_CONNECTION_STRING", base.BlobStorageConnectionString),
		BlobContainerName:           getEnv("BLOB_CONTAINER_NAME", base.BlobContainerName),
	}
}

// ValidateAzureConfig validates Azure-specific configuration. Connection
// strings are only required for the features that use them.
func (c *AzureConfig) ValidateAzureConfig(needServiceBus, needBlob bool) error {
	if needServiceBus {
		if c.ServiceBusConnectionString == "" {
			return &ConfigError{Field: "SERVICEBUS_CONNECTION_STRING", Message: "Service Bus connection string is required when scan events are enabled"}
		}
		if c.QueueName == "" {
			return &ConfigError{Field: "SERVICEBUS_QUEUE_NAME", Message: "Service Bus queue name is required when scan events are enabled"}
		}
	}
	if needBlob {
		if c.BlobStorageConnectionString == "" {
			return &ConfigError{Field: "BLOB_STORAGE_CONNECTION_STRING", Message: "Blob Storage connection string is required for the blob backend"}
		}
		if c.BlobContainerName == "" {
			return &ConfigError{Field: "BLOB_CONTAINER_NAME", Message: "Blob container name is required for the blob backend"}
		}
	}
	return nil
}

// BlobConfigured reports whether a blob connection string is present
func (c *AzureConfig) BlobConfigured() bool {
	return c.BlobStorageConnectionString != "" && c.BlobContainerName != ""
}
