package version

// Version is overridden at build time with
// -ldflags "-X github.com/creditoya/backend/internal/version.Version=..."
var Version = "dev"
