package devauth

import (
	"context"
	"errors"
	"testing"

	domainauth "github.com/target/hpcjobs/internal/domain/auth"
	"github.com/target/hpcjobs/internal/ports"
)

func TestProvider_Authenticate(t *testing.T) {
	tests := []struct {
		name    string
		def     string
		header  string
		want    string
		wantErr bool
	}{
		{name: "header wins", def: "dev-user", header: "alice", want: "alice"},
		{name: "falls back to default", def: "dev-user", want: "dev-user"},
		{name: "blank header uses default", def: "dev-user", header: "   ", want: "dev-user"},
		{name: "no identity", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := NewProvider(Config{DefaultUserID: tt.def})
			id, err := prov.Authenticate(context.Background(), ports.Credentials{UserHeader: tt.header})
			if tt.wantErr {
				if !errors.Is(err, domainauth.ErrUnauthenticated) {
					t.Fatalf("expected ErrUnauthenticated, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate error: %v", err)
			}
			if id.UserID != tt.want {
				t.Fatalf("UserID = %q, want %q", id.UserID, tt.want)
			}
		})
	}
}

func TestProvider_IgnoresBearerToken(t *testing.T) {
	prov := NewProvider(Config{DefaultUserID: "dev-user"})
	id, err := prov.Authenticate(context.Background(), ports.Credentials{BearerToken: "not-a-jwt"})
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if id.UserID != "dev-user" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}
