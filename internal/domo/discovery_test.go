package domo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerrad567/domo-bridge/internal/element"
)

const testMapsXML = `<MapScenes>
	<MapScene><id>1</id><name>Ground Floor</name></MapScene>
	<MapScene><id>2</id><name>First Floor</name></MapScene>
</MapScenes>`

const testScene1XML = `<MapScene>
	<name>Ground Floor</name>
	<Element><id>env.1.light/10</id><name>Kitchen</name><classId>LightElement</classId></Element>
	<Element><id>env.1.webpage/90</id><name>Manual</name><classId>WebPageElement</classId></Element>
	<Element><id>env.1.mystery/91</id><name>Mystery</name><classId>FancyNewElement</classId></Element>
	<Element><name>No ID</name><classId>LightElement</classId></Element>
	<Element><id>shared/99</id><name>Old Name</name><classId>StatusElement</classId></Element>
</MapScene>`

const testScene2XML = `<MapScene>
	<name>First Floor</name>
	<Element><id>env.2.shutter/20</id><name>Bedroom Shutter</name><classId>ShutterElement</classId></Element>
	<Element><id>shared/99</id><name>New Name</name><classId>StatusElement</classId></Element>
</MapScene>`

// newDiscoveryServer serves a two-scene panel topology.
func newDiscoveryServer(t *testing.T, scene2Status int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/maps.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testMapsXML))
	})
	mux.HandleFunc("/api/maps/1.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testScene1XML))
	})
	mux.HandleFunc("/api/maps/2.xml", func(w http.ResponseWriter, _ *http.Request) {
		if scene2Status != http.StatusOK {
			w.WriteHeader(scene2Status)
			return
		}
		_, _ = w.Write([]byte(testScene2XML))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestDiscoverElements verifies the full scene walk, class filtering
// and scene attribution.
func TestDiscoverElements(t *testing.T) {
	server := newDiscoveryServer(t, http.StatusOK)
	client := newTestClient(server)

	catalog, err := client.DiscoverElements(context.Background())
	if err != nil {
		t.Fatalf("DiscoverElements() error = %v", err)
	}

	if len(catalog) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(catalog))
	}

	light, ok := catalog["env.1.light/10"]
	if !ok {
		t.Fatal("kitchen light missing from catalog")
	}
	if light.Name != "Kitchen" || light.Class != element.ClassLight {
		t.Errorf("light = %q/%q, want Kitchen/LightElement", light.Name, light.Class)
	}
	if light.SceneID != "1" || light.SceneName != "Ground Floor" {
		t.Errorf("light scene = %q/%q, want 1/Ground Floor", light.SceneID, light.SceneName)
	}

	if _, ok := catalog["env.2.shutter/20"]; !ok {
		t.Error("bedroom shutter missing from catalog")
	}
	if _, ok := catalog["env.1.webpage/90"]; ok {
		t.Error("ignored web page element should not be catalogued")
	}
	if _, ok := catalog["env.1.mystery/91"]; ok {
		t.Error("unsupported class should not be catalogued")
	}
}

// TestDiscoverElements_LaterSceneWins verifies duplicate element IDs
// resolve to the last scene that reported them.
func TestDiscoverElements_LaterSceneWins(t *testing.T) {
	server := newDiscoveryServer(t, http.StatusOK)
	client := newTestClient(server)

	catalog, err := client.DiscoverElements(context.Background())
	if err != nil {
		t.Fatalf("DiscoverElements() error = %v", err)
	}

	shared, ok := catalog["shared/99"]
	if !ok {
		t.Fatal("shared element missing from catalog")
	}
	if shared.Name != "New Name" {
		t.Errorf("name = %q, want New Name from the later scene", shared.Name)
	}
	if shared.SceneName != "First Floor" {
		t.Errorf("scene = %q, want First Floor", shared.SceneName)
	}
}

// TestDiscoverElements_SceneFailure verifies a failing scene is skipped
// without aborting discovery.
func TestDiscoverElements_SceneFailure(t *testing.T) {
	server := newDiscoveryServer(t, http.StatusInternalServerError)
	client := newTestClient(server)

	catalog, err := client.DiscoverElements(context.Background())
	if err != nil {
		t.Fatalf("DiscoverElements() error = %v", err)
	}

	if _, ok := catalog["env.1.light/10"]; !ok {
		t.Error("scene 1 elements should survive a scene 2 failure")
	}
	if _, ok := catalog["env.2.shutter/20"]; ok {
		t.Error("scene 2 elements should be absent after fetch failure")
	}

	shared := catalog["shared/99"]
	if shared.Name != "Old Name" {
		t.Errorf("name = %q, want Old Name when the later scene is unavailable", shared.Name)
	}
}

// TestDiscoverElements_SceneListFailure verifies a failing scene list
// is fatal.
func TestDiscoverElements_SceneListFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server)

	_, err := client.DiscoverElements(context.Background())
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("error = %v, want ErrProtocol", err)
	}
}
