package directustest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"cmsops/pkg/directus"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AddCollection registers a table-backed collection with the given primary
// key field and plain fields.
func (s *Server) AddCollection(name, pk string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCollectionLocked(directus.Collection{Collection: name, Schema: map[string]any{"name": name}})
	s.fields[name] = append(s.fields[name], directus.Field{
		Collection: name, Field: pk, Type: "integer",
		Schema: &directus.FieldSchema{IsPrimaryKey: true},
		Meta:   map[string]any{"hidden": true, "readonly": true, "interface": "input"},
	})
	for _, f := range fields {
		s.fields[name] = append(s.fields[name], directus.Field{
			Collection: name, Field: f, Type: "string",
			Schema: &directus.FieldSchema{},
			Meta:   map[string]any{"interface": "input"},
		})
	}
}

// AddItems appends rows without going through the API.
func (s *Server) AddItems(collection string, items ...directus.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[collection] = append(s.items[collection], normalize(it))
	}
}

func (s *Server) Items(collection string) []directus.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.Item(nil), s.items[collection]...)
}

func (s *Server) Fields(collection string) []directus.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.Field(nil), s.fields[collection]...)
}

func (s *Server) HasCollection(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok
}

func (s *Server) Relations() []directus.Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.Relation(nil), s.relations...)
}

func (s *Server) AddPermission(p directus.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextPermID
	s.nextPermID++
	s.perms = append(s.perms, p)
}

func (s *Server) Permissions() []directus.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.Permission(nil), s.perms...)
}

func (s *Server) AddFlow(f directus.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = append(s.flows, f)
}

func (s *Server) Flows() []directus.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.Flow(nil), s.flows...)
}

func (s *Server) Files() []directus.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.File(nil), s.files...)
}

func (s *Server) Users() []directus.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]directus.User(nil), s.users...)
}

func (s *Server) AddRole(r directus.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = append(s.roles, r)
}

func (s *Server) addCollectionLocked(col directus.Collection) {
	if _, ok := s.collections[col.Collection]; !ok {
		s.order = append(s.order, col.Collection)
	}
	col.Fields = nil
	s.collections[col.Collection] = &col
}

func (s *Server) pkLocked(collection string) string {
	for _, f := range s.fields[collection] {
		if f.Schema != nil && f.Schema.IsPrimaryKey {
			return f.Field
		}
	}
	return "id"
}

// normalize round-trips through JSON so stored values have the same types
// (float64, []any, map[string]any) as decoded request bodies.
func normalize(it directus.Item) directus.Item {
	b, _ := json.Marshal(it)
	var out directus.Item
	_ = json.Unmarshal(b, &out)
	return out
}

func idString(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func (s *Server) listItems(c *gin.Context) {
	name := c.Param("collection")
	s.mu.Lock()
	_, ok := s.collections[name]
	rows := append([]directus.Item(nil), s.items[name]...)
	s.mu.Unlock()
	if !ok {
		forbidden(c)
		return
	}
	var filter map[string]any
	if raw := c.Query("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			apiError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid filter")
			return
		}
	}
	matched := rows[:0:0]
	for _, it := range rows {
		if match(it, filter) {
			matched = append(matched, it)
		}
	}
	if c.Query("aggregate[count]") != "" {
		// postgres answers with a string count
		data(c, http.StatusOK, []gin.H{{"count": strconv.Itoa(len(matched))}})
		return
	}
	if sortKey := c.Query("sort"); sortKey != "" {
		sortItems(matched, strings.Split(sortKey, ",")[0])
	}
	total := len(matched)
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit := 100
	if l := c.Query("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}
	matched = window(matched, offset, limit)
	out := make([]directus.Item, 0, len(matched))
	for _, it := range matched {
		out = append(out, project(it, c.Query("fields")))
	}
	if c.Query("meta") != "" {
		c.JSON(http.StatusOK, gin.H{"data": out, "meta": gin.H{"total_count": len(rows), "filter_count": total}})
		return
	}
	data(c, http.StatusOK, out)
}

func window[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func sortItems(rows []directus.Item, key string) {
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][key], rows[j][key]
		var less bool
		if fa, ok := a.(float64); ok {
			fb, _ := b.(float64)
			less = fa < fb
		} else {
			less = fmt.Sprint(a) < fmt.Sprint(b)
		}
		if desc {
			return !less
		}
		return less
	})
}

func project(it directus.Item, fields string) directus.Item {
	if fields == "" || fields == "*" {
		return it
	}
	out := directus.Item{}
	for _, f := range strings.Split(fields, ",") {
		top := strings.SplitN(f, ".", 2)[0]
		if top == "*" {
			return it
		}
		if v, ok := it[top]; ok {
			out[top] = v
		}
	}
	return out
}

// match understands the operators the tools send: _eq, _neq, _null,
// _nnull, _in, _empty and _and/_or.
func match(it directus.Item, filter map[string]any) bool {
	for key, cond := range filter {
		switch key {
		case "_and":
			list, _ := cond.([]any)
			for _, sub := range list {
				m, _ := sub.(map[string]any)
				if !match(it, m) {
					return false
				}
			}
		case "_or":
			list, _ := cond.([]any)
			ok := false
			for _, sub := range list {
				m, _ := sub.(map[string]any)
				if match(it, m) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		default:
			ops, _ := cond.(map[string]any)
			if !matchField(it[key], ops) {
				return false
			}
		}
	}
	return true
}

func matchField(v any, ops map[string]any) bool {
	for op, want := range ops {
		switch op {
		case "_eq":
			if v == nil || idString(v) != idString(want) {
				return false
			}
		case "_neq":
			if v != nil && idString(v) == idString(want) {
				return false
			}
		case "_null":
			if (v == nil) != (want == true) {
				return false
			}
		case "_nnull":
			if (v != nil) != (want == true) {
				return false
			}
		case "_empty":
			empty := v == nil || v == ""
			if empty != (want == true) {
				return false
			}
		case "_in":
			list, _ := want.([]any)
			found := false
			for _, w := range list {
				if v != nil && idString(v) == idString(w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (s *Server) findItemLocked(collection, id string) int {
	pk := s.pkLocked(collection)
	for i, it := range s.items[collection] {
		if idString(it[pk]) == id {
			return i
		}
	}
	return -1
}

func (s *Server) getItem(c *gin.Context) {
	name, id := c.Param("collection"), c.Param("id")
	s.mu.Lock()
	idx := s.findItemLocked(name, id)
	var it directus.Item
	if idx >= 0 {
		it = s.items[name][idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		forbidden(c)
		return
	}
	data(c, http.StatusOK, project(it, c.Query("fields")))
}

func (s *Server) createItem(c *gin.Context) {
	name := c.Param("collection")
	var it directus.Item
	if err := c.ShouldBindJSON(&it); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		forbidden(c)
		return
	}
	pk := s.pkLocked(name)
	if it[pk] == nil {
		s.nextItemID[name]++
		for s.findItemLocked(name, strconv.Itoa(s.nextItemID[name])) >= 0 {
			s.nextItemID[name]++
		}
		it[pk] = float64(s.nextItemID[name])
	} else if s.findItemLocked(name, idString(it[pk])) >= 0 {
		apiError(c, http.StatusBadRequest, "RECORD_NOT_UNIQUE", fmt.Sprintf("Value for field %q in collection %q has to be unique.", pk, name))
		return
	}
	s.items[name] = append(s.items[name], it)
	data(c, http.StatusOK, it)
}

func (s *Server) updateItem(c *gin.Context) {
	name, id := c.Param("collection"), c.Param("id")
	var patch directus.Item
	if err := c.ShouldBindJSON(&patch); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findItemLocked(name, id)
	if idx < 0 {
		forbidden(c)
		return
	}
	for k, v := range patch {
		s.items[name][idx][k] = v
	}
	data(c, http.StatusOK, s.items[name][idx])
}

func (s *Server) deleteItem(c *gin.Context) {
	name, id := c.Param("collection"), c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findItemLocked(name, id)
	if idx < 0 {
		forbidden(c)
		return
	}
	s.items[name] = append(s.items[name][:idx], s.items[name][idx+1:]...)
	c.Status(http.StatusNoContent)
}

func (s *Server) listFields(c *gin.Context) {
	name := c.Param("collection")
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		var all []directus.Field
		for _, col := range s.order {
			all = append(all, s.fields[col]...)
		}
		data(c, http.StatusOK, all)
		return
	}
	if _, ok := s.collections[name]; !ok {
		forbidden(c)
		return
	}
	data(c, http.StatusOK, s.fields[name])
}

func (s *Server) fieldIndexLocked(collection, field string) int {
	for i, f := range s.fields[collection] {
		if f.Field == field {
			return i
		}
	}
	return -1
}

func (s *Server) getField(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := c.Param("collection")
	idx := s.fieldIndexLocked(name, c.Param("field"))
	if idx < 0 {
		forbidden(c)
		return
	}
	data(c, http.StatusOK, s.fields[name][idx])
}

func (s *Server) createField(c *gin.Context) {
	name := c.Param("collection")
	var f directus.Field
	if err := c.ShouldBindJSON(&f); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		forbidden(c)
		return
	}
	if s.fieldIndexLocked(name, f.Field) >= 0 {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", fmt.Sprintf("Field %q already exists in collection %q", f.Field, name))
		return
	}
	f.Collection = name
	s.fields[name] = append(s.fields[name], f)
	data(c, http.StatusOK, f)
}

func (s *Server) updateField(c *gin.Context) {
	name := c.Param("collection")
	var body struct {
		Meta map[string]any `json:"meta"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.fieldIndexLocked(name, c.Param("field"))
	if idx < 0 {
		forbidden(c)
		return
	}
	f := &s.fields[name][idx]
	if f.Meta == nil {
		f.Meta = map[string]any{}
	}
	for k, v := range body.Meta {
		f.Meta[k] = v
	}
	data(c, http.StatusOK, *f)
}

func (s *Server) deleteField(c *gin.Context) {
	name := c.Param("collection")
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.fieldIndexLocked(name, c.Param("field"))
	if idx < 0 {
		forbidden(c)
		return
	}
	field := s.fields[name][idx].Field
	s.fields[name] = append(s.fields[name][:idx], s.fields[name][idx+1:]...)
	for _, it := range s.items[name] {
		delete(it, field)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listCollections(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]directus.Collection, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.collections[name])
	}
	data(c, http.StatusOK, out)
}

func (s *Server) getCollection(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[c.Param("collection")]
	if !ok {
		forbidden(c)
		return
	}
	data(c, http.StatusOK, *col)
}

func (s *Server) createCollection(c *gin.Context) {
	var col directus.Collection
	if err := c.ShouldBindJSON(&col); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[col.Collection]; ok {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", fmt.Sprintf("Collection %q already exists", col.Collection))
		return
	}
	fields := col.Fields
	s.addCollectionLocked(col)
	hasPK := false
	for _, f := range fields {
		f.Collection = col.Collection
		if f.Schema != nil && f.Schema.IsPrimaryKey {
			hasPK = true
		}
		s.fields[col.Collection] = append(s.fields[col.Collection], f)
	}
	if !hasPK && col.Schema != nil {
		s.fields[col.Collection] = append([]directus.Field{{
			Collection: col.Collection, Field: "id", Type: "integer",
			Schema: &directus.FieldSchema{IsPrimaryKey: true, HasAutoIncrement: true},
		}}, s.fields[col.Collection]...)
	}
	data(c, http.StatusOK, *s.collections[col.Collection])
}

func (s *Server) deleteCollection(c *gin.Context) {
	name := c.Param("collection")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		forbidden(c)
		return
	}
	delete(s.collections, name)
	delete(s.fields, name)
	delete(s.items, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listRelations(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data(c, http.StatusOK, s.relations)
}

func (s *Server) createRelation(c *gin.Context) {
	var r directus.Relation
	if err := c.ShouldBindJSON(&r); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.relations {
		if existing.Collection == r.Collection && existing.Field == r.Field {
			apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", fmt.Sprintf("Field %q in collection %q already has an associated relationship", r.Field, r.Collection))
			return
		}
	}
	s.relations = append(s.relations, r)
	data(c, http.StatusOK, r)
}

func (s *Server) deleteRelation(c *gin.Context) {
	col, field := c.Param("collection"), c.Param("field")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.relations {
		if r.Collection == col && r.Field == field {
			s.relations = append(s.relations[:i], s.relations[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	forbidden(c)
}

func permissionItem(p directus.Permission) directus.Item {
	b, _ := json.Marshal(p)
	var it directus.Item
	_ = json.Unmarshal(b, &it)
	if _, ok := it["role"]; !ok {
		it["role"] = nil
	}
	if _, ok := it["policy"]; !ok {
		it["policy"] = nil
	}
	return it
}

func (s *Server) listPermissions(c *gin.Context) {
	var filter map[string]any
	if raw := c.Query("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			apiError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid filter")
			return
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []directus.Permission{}
	for _, p := range s.perms {
		if match(permissionItem(p), filter) {
			out = append(out, p)
		}
	}
	data(c, http.StatusOK, out)
}

func (s *Server) createPermission(c *gin.Context) {
	var p directus.Permission
	if err := c.ShouldBindJSON(&p); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextPermID
	s.nextPermID++
	s.perms = append(s.perms, p)
	data(c, http.StatusOK, p)
}

func (s *Server) permIndexLocked(raw string) int {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	for i, p := range s.perms {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) updatePermission(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.permIndexLocked(c.Param("id"))
	if idx < 0 {
		forbidden(c)
		return
	}
	// a patch decodes over the existing row, so absent keys keep their value
	p := s.perms[idx]
	if err := json.Unmarshal(body, &p); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.perms[idx] = p
	data(c, http.StatusOK, p)
}

func (s *Server) deletePermission(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.permIndexLocked(c.Param("id"))
	if idx < 0 {
		forbidden(c)
		return
	}
	s.perms = append(s.perms[:idx], s.perms[idx+1:]...)
	c.Status(http.StatusNoContent)
}

func (s *Server) listFlows(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]directus.Flow(nil), s.flows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	data(c, http.StatusOK, out)
}

func (s *Server) updateFlow(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flows {
		if s.flows[i].ID == c.Param("id") {
			s.flows[i].Status = body.Status
			data(c, http.StatusOK, s.flows[i])
			return
		}
	}
	forbidden(c)
}

func (s *Server) uploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "No file was included in the body")
		return
	}
	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(fh.Filename, fileExt(fh.Filename))
	}
	f := directus.File{
		ID:               uuid.NewString(),
		FilenameDownload: fh.Filename,
		Title:            title,
		Type:             fh.Header.Get("Content-Type"),
		Folder:           c.PostForm("folder"),
		Filesize:         strconv.FormatInt(fh.Size, 10),
	}
	f.FilenameDisk = f.ID + fileExt(fh.Filename)
	s.mu.Lock()
	s.files = append(s.files, f)
	s.mu.Unlock()
	data(c, http.StatusOK, f)
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func (s *Server) listUsers(c *gin.Context) {
	var filter map[string]any
	if raw := c.Query("filter"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []directus.User{}
	for _, u := range s.users {
		it := directus.Item{"id": u.ID, "email": u.Email, "role": u.Role, "status": u.Status}
		if match(it, filter) {
			out = append(out, u)
		}
	}
	data(c, http.StatusOK, out)
}

func (s *Server) createUser(c *gin.Context) {
	var u directus.User
	if err := c.ShouldBindJSON(&u); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.passwords[u.Email]; exists {
		apiError(c, http.StatusBadRequest, "RECORD_NOT_UNIQUE", `Value for field "email" in collection "directus_users" has to be unique.`)
		return
	}
	u.ID = uuid.NewString()
	if u.Status == "" {
		u.Status = "active"
	}
	s.passwords[u.Email] = u.Password
	u.Password = ""
	s.users = append(s.users, u)
	data(c, http.StatusOK, u)
}

func (s *Server) listRoles(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data(c, http.StatusOK, s.roles)
}

func (s *Server) snapshot(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cols := make([]directus.Collection, 0, len(s.order))
	var fields []directus.Field
	for _, name := range s.order {
		cols = append(cols, *s.collections[name])
		fields = append(fields, s.fields[name]...)
	}
	data(c, http.StatusOK, gin.H{
		"version":     1,
		"directus":    "10.13.0",
		"vendor":      "postgres",
		"collections": cols,
		"fields":      fields,
		"relations":   s.relations,
	})
}
