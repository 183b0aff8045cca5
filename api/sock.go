/*
 * FedHDT
 *
 * Copyright 2025 The FedHDT Authors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knakk/rdf"
	"github.com/krotik/common/cryptutil"
	"github.com/krotik/common/stringutil"

	"github.com/fedhdt/fedhdt/eval"
)

/*
EndpointSock is the endpoint URL (rooted) for websocket query operations.
Handles everything under sock/...
*/
const EndpointSock = APIRoot + "/sock"

/*
upgrader can upgrade normal requests to websocket communications
*/
var sockUpgrader = websocket.Upgrader{
	Subprotocols:    []string{"fedhdt-sock"},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

/*
SockEndpointInst creates a new endpoint handler.
*/
func SockEndpointInst() RestEndpointHandler {
	return &sockEndpoint{}
}

/*
Handler object for websocket query operations.
*/
type sockEndpoint struct {
	*DefaultEndpointHandler
}

/*
HandleGET upgrades the connection to a websocket and answers queries sent
over it. Every message with a query field runs against a fresh snapshot,
solutions are pushed as separate messages.
*/
func (se *sockEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	// Upgrade the incoming connection to a websocket. If the upgrade
	// fails then the client gets an HTTP error response.

	conn, err := sockUpgrader.Upgrade(w, r, nil)

	if err != nil {

		// We give details here on what went wrong

		w.Write([]byte(err.Error()))
		return
	}

	commID := fmt.Sprintf("%x", cryptutil.GenerateUUID())

	wc := newSockConnection(commID, conn)

	wc.Init()

	for {
		data, fatal, err := wc.ReadData()

		if err != nil {
			wc.WriteData(map[string]interface{}{
				"error": err.Error(),
			})

			if fatal {
				break
			}

			continue
		}

		if val, ok := data["close"]; ok && stringutil.IsTrueValue(fmt.Sprint(val)) {
			wc.Close("")
			break
		}

		query, ok := data["query"]
		if !ok {
			wc.WriteData(map[string]interface{}{
				"error": "Need a query field",
			})
			continue
		}

		if err := se.runQuery(wc, fmt.Sprint(query)); err != nil {
			wc.WriteData(map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

/*
runQuery evaluates a single query and pushes its result over the
websocket.
*/
func (se *sockEndpoint) runQuery(wc *sockConnection, query string) error {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	snapshot, err := Registry.Snapshot(ctx, nil)
	if err != nil {
		return err
	}
	defer snapshot.Close()

	res, err := Engine.Query(ctx, query, snapshot)
	if err != nil {
		return err
	}

	switch res := res.(type) {

	case *eval.Boolean:
		wc.WriteData(map[string]interface{}{
			"boolean": res.Value,
		})

	case *eval.Solutions:
		wc.WriteData(map[string]interface{}{
			"variables": res.Variables,
		})

		for {
			row, err := res.Next()

			if err != nil {
				return err
			}

			if row == nil {
				break
			}

			binding := make(map[string]interface{})

			for i, v := range res.Variables {
				if row[i] != nil {
					binding[v] = jsonTerm(row[i])
				}
			}

			wc.WriteData(map[string]interface{}{
				"row": binding,
			})
		}

		wc.WriteData(map[string]interface{}{
			"done": true,
		})

	case *eval.Graph:
		for {
			triple, err := res.Next()

			if err != nil {
				return err
			}

			if triple == nil {
				break
			}

			wc.WriteData(map[string]interface{}{
				"triple": triple.Serialize(rdf.NTriples),
			})
		}

		wc.WriteData(map[string]interface{}{
			"done": true,
		})
	}

	return nil
}

/*
sockConnection models a single websocket connection.

Websocket connections support one concurrent reader and one concurrent
writer. See: https://godoc.org/github.com/gorilla/websocket#hdr-Concurrency
*/
type sockConnection struct {
	CommID string
	Conn   *websocket.Conn
	RMutex *sync.Mutex
	WMutex *sync.Mutex
}

/*
newSockConnection creates a new sockConnection object.
*/
func newSockConnection(commID string, c *websocket.Conn) *sockConnection {
	return &sockConnection{
		CommID: commID,
		Conn:   c,
		RMutex: &sync.Mutex{},
		WMutex: &sync.Mutex{}}
}

/*
Init initializes the websocket connection.
*/
func (wc *sockConnection) Init() {
	wc.WMutex.Lock()
	defer wc.WMutex.Unlock()
	wc.Conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"init_success","payload":{}}`))
}

/*
ReadData reads data from the websocket connection.
*/
func (wc *sockConnection) ReadData() (map[string]interface{}, bool, error) {
	var data map[string]interface{}
	var fatal = true

	wc.RMutex.Lock()
	_, msg, err := wc.Conn.ReadMessage()
	wc.RMutex.Unlock()

	if err == nil {
		fatal = false
		err = json.Unmarshal(msg, &data)
	}

	return data, fatal, err
}

/*
WriteData writes data to the websocket.
*/
func (wc *sockConnection) WriteData(data map[string]interface{}) {
	wc.WMutex.Lock()
	defer wc.WMutex.Unlock()

	jsonData, _ := json.Marshal(map[string]interface{}{
		"commID":  wc.CommID,
		"type":    "data",
		"payload": data,
	})

	wc.Conn.WriteMessage(websocket.TextMessage, jsonData)
}

/*
Close closes the websocket connection.
*/
func (wc *sockConnection) Close(msg string) {
	wc.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(
			websocket.CloseNormalClosure, msg), time.Now().Add(10*time.Second))

	wc.Conn.Close()
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (se *sockEndpoint) SwaggerDefs(s map[string]interface{}) {
	// No swagger definitions for this endpoint as it only handles websocket requests
}
