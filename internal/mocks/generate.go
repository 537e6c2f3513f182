// Package mocks provides gomock implementations of the console ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	client := mocks.NewMockIdentityClient(ctrl)
//	client.EXPECT().FetchCurrentIdentity(gomock.Any(), "tok").Return(identity, nil)
package mocks

// Generate mock for IdentityClient interface from internal/ports package.
// This creates MockIdentityClient with methods: Login, FetchCurrentIdentity, Logout
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_client_mock.go github.com/target/mmk-console/internal/ports IdentityClient

// Generate mock for TokenStore interface from internal/ports package.
// This creates MockTokenStore with methods: Get, Set, Clear
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_store_mock.go github.com/target/mmk-console/internal/ports TokenStore

// Generate mock for Navigator interface from internal/ports package.
// This creates MockNavigator with method: Navigate
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=navigator_mock.go github.com/target/mmk-console/internal/ports Navigator
