package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/town"
	"github.com/covey-town/townd/internal/towns"
	"github.com/gin-gonic/gin"
	"github.com/pixil98/go-testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *towns.Store) {
	t.Helper()

	bus, err := eventbus.New(eventbus.WithPort(0))
	if err != nil {
		t.Fatalf("creating bus: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Start(ctx)

	select {
	case <-bus.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("bus never became ready")
	}

	store := towns.NewStore(town.StubVideoTokenSource{})
	return NewRouter(store, bus), store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateTownAndJoinTown(t *testing.T) {
	router, _ := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/towns", createTownRequest{
		FriendlyName:     "Testville",
		IsPubliclyListed: true,
	})
	testutil.AssertEqual(t, "create status", createRec.Code, http.StatusOK)

	var created createTownResponse
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	if created.CoveyTownID == "" || created.CoveyTownPassword == "" {
		t.Fatalf("expected a town ID and password, got %+v", created)
	}

	joinRec := doJSON(t, router, http.MethodPost, "/sessions", joinTownRequest{
		UserName:    "Alice",
		CoveyTownID: created.CoveyTownID,
	})
	testutil.AssertEqual(t, "join status", joinRec.Code, http.StatusOK)

	var joined joinTownResponse
	if err := json.Unmarshal(joinRec.Body.Bytes(), &joined); err != nil {
		t.Fatalf("decoding join response: %v", err)
	}
	testutil.AssertEqual(t, "friendly name", joined.FriendlyName, "Testville")
	testutil.AssertEqual(t, "publicly listed", joined.IsPubliclyListed, true)
	testutil.AssertEqual(t, "current players", len(joined.CurrentPlayers), 1)
	if joined.CoveySessionToken == "" || joined.CoveyUserID == "" || joined.ProviderVideoToken == "" {
		t.Fatalf("expected session/user/video tokens, got %+v", joined)
	}
}

func TestJoinTown_UnknownTown(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/sessions", joinTownRequest{
		UserName:    "Alice",
		CoveyTownID: "does-not-exist",
	})
	testutil.AssertEqual(t, "status", rec.Code, http.StatusNotFound)
}

func TestListTowns_OnlyPubliclyListed(t *testing.T) {
	router, store := newTestRouter(t)

	if _, _, err := store.CreateTown("Public Town", true, 10); err != nil {
		t.Fatalf("creating public town: %v", err)
	}
	if _, _, err := store.CreateTown("Private Town", false, 10); err != nil {
		t.Fatalf("creating private town: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/towns", nil)
	testutil.AssertEqual(t, "status", rec.Code, http.StatusOK)

	var listings []towns.Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &listings); err != nil {
		t.Fatalf("decoding listings: %v", err)
	}
	testutil.AssertEqual(t, "listing count", len(listings), 1)
	testutil.AssertEqual(t, "listed town name", listings[0].FriendlyName, "Public Town")
}

func TestUpdateAndDeleteTown_WrongPasswordRejected(t *testing.T) {
	router, store := newTestRouter(t)

	ctrl, password, err := store.CreateTown("Testville", true, 10)
	if err != nil {
		t.Fatalf("creating town: %v", err)
	}

	rec := doJSON(t, router, http.MethodPatch, "/towns/"+ctrl.CoveyTownID, updateTownRequest{
		CoveyTownPassword: "wrong-password",
	})
	testutil.AssertEqual(t, "wrong password status", rec.Code, http.StatusForbidden)

	newName := "Renamed"
	rec = doJSON(t, router, http.MethodPatch, "/towns/"+ctrl.CoveyTownID, updateTownRequest{
		CoveyTownPassword: password,
		FriendlyName:      &newName,
	})
	testutil.AssertEqual(t, "correct password status", rec.Code, http.StatusOK)
	testutil.AssertEqual(t, "renamed", ctrl.FriendlyName(), "Renamed")

	rec = doJSON(t, router, http.MethodDelete, "/towns/"+ctrl.CoveyTownID+"/wrong-password", nil)
	testutil.AssertEqual(t, "wrong password delete status", rec.Code, http.StatusForbidden)

	rec = doJSON(t, router, http.MethodDelete, "/towns/"+ctrl.CoveyTownID+"/"+password, nil)
	testutil.AssertEqual(t, "delete status", rec.Code, http.StatusOK)

	if _, ok := store.GetControllerForTown(ctrl.CoveyTownID); ok {
		t.Fatal("expected the town to be gone after deletion")
	}
}

func TestTownStats(t *testing.T) {
	router, store := newTestRouter(t)

	ctrl, _, err := store.CreateTown("Testville", true, 5)
	if err != nil {
		t.Fatalf("creating town: %v", err)
	}

	rec := doJSON(t, router, http.MethodGet, "/towns/"+ctrl.CoveyTownID+"/stats", nil)
	testutil.AssertEqual(t, "status", rec.Code, http.StatusOK)

	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	testutil.AssertEqual(t, "friendly name", stats["friendlyName"], "Testville")
}

func TestCreateConversationArea(t *testing.T) {
	router, store := newTestRouter(t)

	ctrl, _, err := store.CreateTown("Testville", true, 10)
	if err != nil {
		t.Fatalf("creating town: %v", err)
	}
	session, _, err := store.JoinTown(context.Background(), ctrl.CoveyTownID, "Alice")
	if err != nil {
		t.Fatalf("joining town: %v", err)
	}

	req := createConversationAreaRequest{
		SessionToken: session.SessionToken,
		Label:        "area-1",
		Topic:        "chatting",
	}
	req.BoundingBox.Width = 10
	req.BoundingBox.Height = 10

	rec := doJSON(t, router, http.MethodPost, "/towns/"+ctrl.CoveyTownID+"/conversationAreas", req)
	testutil.AssertEqual(t, "status", rec.Code, http.StatusOK)

	if _, ok := ctrl.GetConversationArea("area-1"); !ok {
		t.Fatal("expected the conversation area to be registered on the controller")
	}
}
