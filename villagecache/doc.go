// Package villagecache is the village session store: an in-memory cache of
// static villages, quests and player saves in front of a storage.Backend.
//
// Reads go through the cache, then the primary backend, then the fallback.
// Every record is validated and migrated before it is cached. Writes go to the
// primary backend; when it fails they land in the fallback and the caller is
// not failed.
//
//	store, _ := villagecache.New(primary,
//		villagecache.WithFallback(flatfile.New("saves")),
//		villagecache.WithMigrator(migration.Default()),
//	)
//	store.LoadStatic(ctx, villagecache.StaticPaths{...})
//	store.LoadAll(ctx)
//
//	v, _ := store.Create(ctx, villagecache.WithDisplayName("Ana"))
//	v.PlayerInfo["last_logged_in"] = float64(time.Now().Unix())
//	store.Save(ctx, v.ID)
package villagecache
