package domo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/domo-bridge/internal/element"
)

// DiscoverElements walks the panel topology into a flat element catalog.
//
// It fetches the scene list, then each scene's element document in
// turn, pausing briefly between scene fetches to avoid overloading the
// panel. A scene that fails to fetch is skipped with a warning and
// discovery continues; only a failure to fetch the scene list itself is
// fatal.
//
// Elements with a missing id or class are dropped. Ignored classes are
// dropped silently; classes with no platform mapping are dropped with a
// warning. When two scenes report the same element id, the later
// scene's entry wins.
func (c *Client) DiscoverElements(ctx context.Context) (element.Catalog, error) {
	mapsDoc, err := c.FetchXML(ctx, "/api/maps.xml")
	if err != nil {
		return nil, fmt.Errorf("fetching scene list: %w", err)
	}

	var sceneIDs []string
	for _, scene := range mapsDoc.FindAll("MapScene") {
		if id := strings.TrimSpace(scene.FindText("id")); id != "" {
			sceneIDs = append(sceneIDs, id)
		}
	}

	catalog := element.Catalog{}
	for _, sceneID := range sceneIDs {
		sceneDoc, err := c.FetchXML(ctx, "/api/maps/"+sceneID+".xml")
		if err != nil {
			c.logWarn("scene fetch failed, skipping", "scene_id", sceneID, "error", err)
			continue
		}

		sceneName := strings.TrimSpace(sceneDoc.FindText("name"))
		c.collectSceneElements(sceneDoc, sceneID, sceneName, catalog)

		// Small pause to avoid stressing the panel
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.scenePause):
		}
	}

	c.logInfo("discovery completed", "elements", len(catalog), "scenes", len(sceneIDs))
	return catalog, nil
}

// collectSceneElements extracts one scene's elements into the catalog.
func (c *Client) collectSceneElements(doc *Document, sceneID, sceneName string, catalog element.Catalog) {
	for _, node := range doc.FindAll("Element") {
		id := strings.TrimSpace(node.FindText("id"))
		name := strings.TrimSpace(node.FindText("name"))
		class := element.Class(strings.TrimSpace(node.FindText("classId")))

		if id == "" || class == "" {
			continue
		}
		if class.Ignored() {
			continue
		}
		if !class.Supported() {
			c.logWarn("unsupported class ignored",
				"class", string(class), "name", name, "element_id", id, "scene", sceneName)
			continue
		}

		c.logInfo("discovered element",
			"element_id", id, "class", string(class), "name", name, "scene", sceneName)
		catalog[id] = element.Element{
			ID:        id,
			Name:      name,
			Class:     class,
			SceneID:   sceneID,
			SceneName: sceneName,
		}
	}
}
