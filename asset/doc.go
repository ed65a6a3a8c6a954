// Package asset provides the loading-state surface shared by streamed
// resources and the hand-off that moves loading results onto the render
// thread.
//
// Every loadable resource embeds [Resource]. Its [LoadingState] changes only
// on the render thread; each transition notifies the connected listeners.
// Work done on other goroutines reaches the render thread through a
// [Dispatcher], which the application drains between frames:
//
//	dispatcher := asset.NewDispatcher()
//	streamer := asset.NewStreamer(dispatcher)
//	defer streamer.Close()
//
//	streamer.Load(res, func(ctx context.Context) (func() error, error) {
//	    data, err := os.ReadFile(path)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return func() error { return res.apply(data) }, nil
//	})
//
//	for running {
//	    dispatcher.Dispatch()
//	    workspace.Execute(target, camera, light)
//	}
package asset
